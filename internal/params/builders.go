package params

import (
	"strings"

	"github.com/codex-k8s/wfctl/internal/fault"
)

// DefaultDestinationCluster is the in-cluster API server address.
const DefaultDestinationCluster = "https://kubernetes.default.svc"

// DefaultValuesFile is used for environments that do not name a values file.
const DefaultValuesFile = "values.yaml"

// Application describes an Argo CD Application submission.
type Application struct {
	Name                 string
	Namespace            string
	RepoURL              string
	ChartPath            string
	DestinationCluster   string
	DestinationNamespace string
	ValuesFile           string
	// HelmParameters is the raw "k=v,k2=v2" list.
	HelmParameters string
	SyncPolicy     SyncPolicy
}

// ApplicationRequired lists the parameters the application template needs.
var ApplicationRequired = []string{
	"app_name", "namespace", "repo_url", "chart_path",
	"destination_cluster", "destination_namespace",
}

// Params builds and validates the parameter set. Malformed helm entries are
// returned in skipped and left out of the set.
func (a Application) Params() (set *Set, skipped []string, err error) {
	set = &Set{}
	set.Put("app_name", a.Name)
	set.Put("namespace", a.Namespace)
	set.Put("repo_url", a.RepoURL)
	set.Put("chart_path", a.ChartPath)
	set.Put("destination_cluster", firstNonEmpty(a.DestinationCluster, DefaultDestinationCluster))
	set.Put("destination_namespace", firstNonEmpty(a.DestinationNamespace, a.Name))
	a.SyncPolicy.orManual().Apply(set)
	set.PutIfNotEmpty("values_file", a.ValuesFile)
	if strings.TrimSpace(a.HelmParameters) != "" {
		helm, bad := ParseAssignments(a.HelmParameters)
		skipped = bad
		if helm.Len() > 0 {
			set.Put("helm_parameters", helm.Join())
		}
	}
	if err := set.Validate(ApplicationRequired...); err != nil {
		return nil, skipped, err
	}
	return set, skipped, nil
}

// ApplicationSet describes an Argo CD ApplicationSet submission.
type ApplicationSet struct {
	Name          string
	RepoURL       string
	ChartPath     string
	GeneratorType string
	Environments  []Environment
	SyncPolicy    SyncPolicy
}

// ApplicationSetRequired lists the parameters the applicationset template needs.
var ApplicationSetRequired = []string{
	"appset_name", "repo_url", "chart_path", "generator_type", "environments",
}

// Params builds and validates the parameter set.
func (a ApplicationSet) Params() (*Set, error) {
	generator := firstNonEmpty(a.GeneratorType, "list")
	if generator != "list" && generator != "git" {
		return nil, fault.Invalid("generator_type must be 'list' or 'git'")
	}
	set := &Set{}
	set.Put("appset_name", a.Name)
	set.Put("repo_url", a.RepoURL)
	set.Put("chart_path", a.ChartPath)
	set.Put("generator_type", generator)
	envs := ""
	if len(a.Environments) > 0 {
		withDefaults := make([]Environment, len(a.Environments))
		for i, env := range a.Environments {
			if env.ValuesFile == "" {
				env.ValuesFile = DefaultValuesFile
			}
			withDefaults[i] = env
		}
		encoded, err := EncodeEnvironments(withDefaults)
		if err != nil {
			return nil, err
		}
		envs = encoded
	}
	set.Put("environments", envs)
	a.SyncPolicy.orManual().Apply(set)
	if err := set.Validate(ApplicationSetRequired...); err != nil {
		return nil, err
	}
	return set, nil
}

func (p SyncPolicy) orManual() SyncPolicy {
	if p == "" {
		return SyncManual
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
