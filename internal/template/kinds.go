package template

import (
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/codex-k8s/wfctl/internal/fault"
	"github.com/codex-k8s/wfctl/internal/params"
)

// Kind selects one of the built-in templates.
type Kind string

const (
	KindApplication    Kind = "application"
	KindApplicationSet Kind = "applicationset"
	KindInfrastructure Kind = "infrastructure"
)

// Kinds lists every built-in kind in creation order.
var Kinds = []Kind{KindApplication, KindApplicationSet, KindInfrastructure}

// Built-in template names.
const (
	ApplicationTemplate    = "create-argocd-application"
	ApplicationSetTemplate = "create-argocd-applicationset"
	InfrastructureTemplate = "provision-infrastructure"
)

// DefaultServiceAccount runs the built-in templates.
const DefaultServiceAccount = "argo-workflow-sa"

const (
	shellImage   = "alpine:3.18"
	kubectlImage = "bitnami/kubectl:latest"
)

//go:embed scripts/*.sh
var scripts embed.FS

// ParseKind accepts a kind name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds {
		if k == known {
			return k, nil
		}
	}
	return "", fault.Invalid(fmt.Sprintf("unknown template kind %q: must be one of application, applicationset, infrastructure", s))
}

// TemplateName returns the remote name of the kind's template.
func (k Kind) TemplateName() string {
	switch k {
	case KindApplication:
		return ApplicationTemplate
	case KindApplicationSet:
		return ApplicationSetTemplate
	case KindInfrastructure:
		return InfrastructureTemplate
	}
	return ""
}

// Options customize generated templates.
type Options struct {
	Namespace      string
	ServiceAccount string
}

// Generate builds the template for kind.
func Generate(kind Kind, opts Options) (*Template, error) {
	var t *Template
	switch kind {
	case KindApplication:
		t = applicationTemplate()
	case KindApplicationSet:
		t = applicationSetTemplate()
	case KindInfrastructure:
		t = infrastructureTemplate()
	default:
		return nil, fault.Invalid(fmt.Sprintf("unknown template kind %q", kind))
	}
	t.Namespace = opts.Namespace
	t.ServiceAccount = opts.ServiceAccount
	if t.ServiceAccount == "" {
		t.ServiceAccount = DefaultServiceAccount
	}
	if err := t.Check(); err != nil {
		return nil, err
	}
	return t, nil
}

// GenerateDocument builds, encodes and validates the template for kind.
func GenerateDocument(kind Kind, opts Options) ([]byte, error) {
	t, err := Generate(kind, opts)
	if err != nil {
		return nil, err
	}
	doc, err := Encode(t)
	if err != nil {
		return nil, err
	}
	if err := Validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func applicationTemplate() *Template {
	render := script("render-application.sh")
	return &Template{
		Name:       ApplicationTemplate,
		Entrypoint: "create-application",
		Parameters: []Parameter{
			Required("app_name"),
			Required("namespace"),
			Required("repo_url"),
			Required("chart_path"),
			Optional("destination_cluster", params.DefaultDestinationCluster),
			Required("destination_namespace"),
			Optional("values_file", ""),
			Optional("helm_parameters", ""),
			Optional(params.SyncAutomated, "false"),
			Optional(params.SyncSelfHeal, "false"),
			Optional(params.SyncPrune, "false"),
		},
		Steps: []Step{
			shellStep("validate-inputs", script("validate-application.sh")),
			kubectlStep("create-namespace", script("create-namespace.sh")),
			shellStep("generate-manifest", render+"\ncat /tmp/application.yaml\n"),
			applyStep("apply-application", render+
				"\nkubectl apply -f /tmp/application.yaml\n"+
				"echo \"Application {{workflow.parameters.app_name}} applied successfully\"\n"),
			shellOnKubectl("verify-creation", script("verify-application.sh")),
		},
	}
}

func applicationSetTemplate() *Template {
	render := script("render-applicationset.sh")
	return &Template{
		Name:       ApplicationSetTemplate,
		Entrypoint: "create-applicationset",
		Parameters: []Parameter{
			Required("appset_name"),
			Required("repo_url"),
			Required("chart_path"),
			Optional("generator_type", "list"),
			Required("environments"),
			Optional(params.SyncAutomated, "false"),
			Optional(params.SyncSelfHeal, "false"),
			Optional(params.SyncPrune, "false"),
		},
		Steps: []Step{
			shellStep("validate-inputs", script("validate-applicationset.sh")),
			shellStep("validate-environments", script("validate-environments.sh")),
			shellStep("generate-manifest", render+"\ncat /tmp/applicationset.yaml\n"),
			applyStep("apply-applicationset", render+
				"\nkubectl apply -f /tmp/applicationset.yaml\n"+
				"echo \"ApplicationSet {{workflow.parameters.appset_name}} applied successfully\"\n"),
		},
	}
}

func infrastructureTemplate() *Template {
	custom := kubectlStep("execute-custom-scripts", script("custom-scripts.sh"))
	custom.When = "'{{workflow.parameters.custom_scripts}}' != ''"
	return &Template{
		Name:       InfrastructureTemplate,
		Entrypoint: "provision",
		Parameters: []Parameter{
			Required("namespace"),
			Optional("secrets", "[]"),
			Optional("configmaps", "[]"),
			Optional("custom_scripts", ""),
		},
		Steps: []Step{
			kubectlStep("create-namespace", script("create-namespace.sh")),
			kubectlStep("create-secrets", script("create-secrets.sh")),
			kubectlStep("create-configmaps", script("create-configmaps.sh")),
			custom,
		},
	}
}

func shellStep(name, source string) Step {
	return Step{Name: name, Image: shellImage, Command: []string{"sh"}, Source: source, Retry: RetryPolicy{Limit: 2}}
}

// shellOnKubectl runs a read-only kubectl script without OnError retries.
func shellOnKubectl(name, source string) Step {
	s := shellStep(name, source)
	s.Image = kubectlImage
	return s
}

func kubectlStep(name, source string) Step {
	return Step{
		Name:    name,
		Image:   kubectlImage,
		Command: []string{"sh"},
		Source:  source,
		Retry:   RetryPolicy{Limit: 2, OnError: true},
	}
}

// applyStep is a kubectl step that creates remote objects and backs off between attempts.
func applyStep(name, source string) Step {
	s := kubectlStep(name, source)
	s.Retry = RetryPolicy{
		Limit:   3,
		OnError: true,
		Backoff: &Backoff{Duration: 5 * time.Second, Factor: 2, MaxDuration: time.Minute},
	}
	return s
}

func script(name string) string {
	b, err := scripts.ReadFile("scripts/" + name)
	if err != nil {
		panic(fmt.Sprintf("missing embedded script %s: %v", name, err))
	}
	return string(b)
}
