package params

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/codex-k8s/wfctl/internal/fault"
)

// Environment is one ApplicationSet list-generator element.
type Environment struct {
	Name       string `json:"name"`
	Cluster    string `json:"cluster"`
	Namespace  string `json:"namespace"`
	ValuesFile string `json:"values_file,omitempty"`
}

var environmentFields = []string{"name", "cluster", "namespace"}

// ParseEnvironments decodes a JSON array of environments. Every entry must be
// an object carrying name, cluster and namespace; all problems are reported.
func ParseEnvironments(data []byte) ([]Environment, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fault.Invalid("Environments must be a JSON array")
		}
		e := fault.Invalid("Invalid environments JSON format: " + err.Error())
		e.Kind = fault.Syntax
		return nil, e
	}
	if len(raw) == 0 {
		return nil, fault.Invalid("At least one environment must be specified")
	}

	var violations []string
	out := make([]Environment, 0, len(raw))
	for idx, item := range raw {
		var fields map[string]any
		if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
			violations = append(violations, fmt.Sprintf("Environment %d must be a JSON object", idx))
			continue
		}
		var missing []string
		for _, f := range environmentFields {
			if _, ok := fields[f]; !ok {
				missing = append(missing, f)
			}
		}
		label := fmt.Sprint(idx)
		if name, ok := fields["name"].(string); ok && name != "" {
			label = name
		}
		if len(missing) > 0 {
			violations = append(violations, fmt.Sprintf("Environment '%s' missing required fields: %s", label, strings.Join(missing, ", ")))
			continue
		}
		var env Environment
		if err := json.Unmarshal(item, &env); err != nil {
			violations = append(violations, fmt.Sprintf("Environment '%s': %v", label, err))
			continue
		}
		out = append(out, env)
	}
	if len(violations) > 0 {
		return nil, fault.Invalid(violations...)
	}
	return out, nil
}

// EncodeEnvironments renders environments as the compact JSON parameter value.
func EncodeEnvironments(envs []Environment) (string, error) {
	b, err := json.Marshal(envs)
	if err != nil {
		return "", fmt.Errorf("encode environments: %w", err)
	}
	return string(b), nil
}
