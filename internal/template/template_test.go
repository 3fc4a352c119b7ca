package template

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/wfctl/internal/fault"
)

func TestGenerateThenValidate(t *testing.T) {
	for _, kind := range Kinds {
		t.Run(string(kind), func(t *testing.T) {
			doc, err := GenerateDocument(kind, Options{Namespace: "argo"})
			require.NoError(t, err)
			require.NoError(t, Validate(doc))

			h, err := ParseHeader(doc)
			require.NoError(t, err)
			assert.Equal(t, kind.TemplateName(), h.Name)
			assert.Equal(t, "argo", h.Namespace)
		})
	}
}

func TestGeneratedDocumentShape(t *testing.T) {
	doc, err := GenerateDocument(KindApplication, Options{Namespace: "argo"})
	require.NoError(t, err)

	var parsed struct {
		Kind string `yaml:"kind"`
		Spec struct {
			ServiceAccountName string `yaml:"serviceAccountName"`
			Entrypoint         string `yaml:"entrypoint"`
			Arguments          struct {
				Parameters []map[string]string `yaml:"parameters"`
			} `yaml:"arguments"`
			Templates []struct {
				Name          string                `yaml:"name"`
				Steps         [][]map[string]string `yaml:"steps"`
				RetryStrategy map[string]any        `yaml:"retryStrategy"`
			} `yaml:"templates"`
		} `yaml:"spec"`
	}
	require.NoError(t, yaml.Unmarshal(doc, &parsed))

	assert.Equal(t, "WorkflowTemplate", parsed.Kind)
	assert.Equal(t, DefaultServiceAccount, parsed.Spec.ServiceAccountName)
	assert.Equal(t, "create-application", parsed.Spec.Entrypoint)
	require.Len(t, parsed.Spec.Templates, 6)

	chain := parsed.Spec.Templates[0]
	assert.Equal(t, "create-application", chain.Name)
	var order []string
	for _, group := range chain.Steps {
		require.Len(t, group, 1)
		order = append(order, group[0]["name"])
	}
	assert.Equal(t, []string{"validate-inputs", "create-namespace", "generate-manifest", "apply-application", "verify-creation"}, order)

	apply := parsed.Spec.Templates[4]
	assert.Equal(t, "apply-application", apply.Name)
	assert.Equal(t, "3", apply.RetryStrategy["limit"])
	assert.Equal(t, "OnError", apply.RetryStrategy["retryPolicy"])
	assert.Equal(t, map[string]any{"duration": "5s", "factor": 2, "maxDuration": "1m"}, apply.RetryStrategy["backoff"])

	validate := parsed.Spec.Templates[1]
	assert.Equal(t, "2", validate.RetryStrategy["limit"])
	assert.NotContains(t, validate.RetryStrategy, "backoff")

	defaults := map[string]*string{}
	for _, p := range parsed.Spec.Arguments.Parameters {
		if v, ok := p["value"]; ok {
			defaults[p["name"]] = &v
		} else {
			defaults[p["name"]] = nil
		}
	}
	assert.Nil(t, defaults["app_name"])
	require.NotNil(t, defaults["sync_policy_automated"])
	assert.Equal(t, "false", *defaults["sync_policy_automated"])
	require.NotNil(t, defaults["values_file"])
	assert.Equal(t, "", *defaults["values_file"])
}

func TestInfrastructureConditionalStep(t *testing.T) {
	tpl, err := Generate(KindInfrastructure, Options{Namespace: "argo"})
	require.NoError(t, err)
	last := tpl.Steps[len(tpl.Steps)-1]
	assert.Equal(t, "execute-custom-scripts", last.Name)
	assert.Contains(t, last.When, "{{workflow.parameters.custom_scripts}}")
	for _, s := range tpl.Steps[:len(tpl.Steps)-1] {
		assert.Empty(t, s.When, s.Name)
	}
}

func TestApplyStepsCarryBackoff(t *testing.T) {
	for _, kind := range Kinds {
		tpl, err := Generate(kind, Options{Namespace: "argo"})
		require.NoError(t, err)
		for _, s := range tpl.Steps {
			assert.GreaterOrEqual(t, s.Retry.Limit, 1, s.Name)
			if strings.HasPrefix(s.Name, "apply-") {
				require.NotNil(t, s.Retry.Backoff, s.Name)
				assert.True(t, s.Retry.OnError)
			}
		}
	}
}

func TestCheckCollectsViolations(t *testing.T) {
	tpl := &Template{
		Name:       "t",
		Entrypoint: "main",
		Parameters: []Parameter{Required("a"), Required("a")},
		Steps: []Step{
			{Name: "main", Image: "alpine", Retry: RetryPolicy{Limit: 1}},
			{Name: "s", Image: "", Source: "echo {{workflow.parameters.b}}", Retry: RetryPolicy{Limit: 0}},
			{Name: "s", Image: "alpine", Retry: RetryPolicy{Limit: 1, Backoff: &Backoff{}}},
		},
	}
	err := tpl.Check()
	var fe *fault.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fault.Validation, fe.Kind)
	assert.ElementsMatch(t, []string{
		"template namespace is required",
		`parameter "a" declared twice`,
		`step "main" collides with the entrypoint`,
		`step "s" has no image`,
		`step "s" has no retry limit`,
		`step "s" references undeclared parameter "b"`,
		`step "s" declared twice`,
		`step "s" has an invalid backoff`,
	}, fe.Violations)
}

func TestReferences(t *testing.T) {
	refs := References("{{workflow.parameters.a}} {{ workflow.parameters.b_c }} {{workflow.parameters.a}} {{inputs.parameters.x}}")
	assert.Equal(t, []string{"a", "b_c"}, refs)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" ApplicationSet ")
	require.NoError(t, err)
	assert.Equal(t, KindApplicationSet, k)

	_, err = ParseKind("cronjob")
	assert.True(t, fault.Is(err, fault.Validation))
}

func TestValidateRejectsMalformed(t *testing.T) {
	tests := map[string]string{
		"empty":      "",
		"not yaml":   "kind: [unterminated",
		"wrong kind": "kind: Workflow\nmetadata:\n  name: x\nspec: {}\n",
		"no name":    "kind: WorkflowTemplate\nmetadata: {}\nspec: {}\n",
		"two docs":   "kind: WorkflowTemplate\nmetadata:\n  name: x\nspec: {}\n---\nkind: Other\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			err := Validate([]byte(doc))
			assert.True(t, fault.Is(err, fault.Syntax), "got %v", err)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "5s", formatDuration(5e9))
	assert.Equal(t, "1m", formatDuration(60e9))
	assert.Equal(t, "1m30s", formatDuration(90e9))
	assert.Equal(t, "2h", formatDuration(7200e9))
}
