package params

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/wfctl/internal/fault"
)

func violations(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	var fe *fault.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, fault.Validation, fe.Kind)
	return fe.Violations
}

func TestValidate_MissingOnly(t *testing.T) {
	err := Validate([]string{"a", "b"}, map[string]string{"a": "1"})
	assert.Equal(t, []string{"Missing required parameters: b"}, violations(t, err))
}

func TestValidate_BlankIsEmpty(t *testing.T) {
	err := Validate([]string{"a"}, map[string]string{"a": "  "})
	assert.Equal(t, []string{"Empty required parameters: a"}, violations(t, err))
}

func TestValidate_CollectsBothCategories(t *testing.T) {
	err := Validate([]string{"a", "b"}, map[string]string{"a": "", "c": "x"})
	assert.Equal(t, []string{
		"Missing required parameters: b",
		"Empty required parameters: a",
	}, violations(t, err))
	assert.Equal(t, "Missing required parameters: b. Empty required parameters: a", err.Error())
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, Validate([]string{"a", "a"}, map[string]string{"a": "1"}))
	assert.NoError(t, Validate(nil, nil))
}

func TestSetOrder(t *testing.T) {
	s := &Set{}
	s.Put("b", "1")
	s.Put("a", "2")
	s.Put("b", "3")
	s.PutIfNotEmpty("c", " ")

	assert.Equal(t, []string{"b", "a"}, s.Names())
	assert.Equal(t, "3", s.Get("b"))
	assert.Equal(t, "b=3,a=2", s.Join())
	assert.Equal(t, 2, s.Len())

	var nilSet *Set
	assert.Equal(t, 0, nilSet.Len())
	_, ok := nilSet.Lookup("x")
	assert.False(t, ok)
}

func TestNewSetSortsKeys(t *testing.T) {
	s := NewSet(map[string]string{"z": "1", "a": "2"})
	assert.Equal(t, []string{"a", "z"}, s.Names())
}

func TestParseAssignments(t *testing.T) {
	set, skipped := ParseAssignments(" replicas = 3,image.tag=v2.0,,broken, =x")
	assert.Equal(t, "replicas=3,image.tag=v2.0", set.Join())
	assert.Equal(t, []string{"broken", " =x"}, skipped)
}

func TestSyncPolicy(t *testing.T) {
	tests := []struct {
		policy    string
		automated string
		prune     string
		selfHeal  string
	}{
		{"manual", "false", "false", "false"},
		{"", "false", "false", "false"},
		{"auto", "true", "false", "false"},
		{"auto-prune", "true", "true", "false"},
		{"auto-heal", "true", "false", "true"},
	}
	for _, tt := range tests {
		p, err := ParseSyncPolicy(tt.policy)
		require.NoError(t, err)
		s := &Set{}
		p.Apply(s)
		assert.Equal(t, tt.automated, s.Get(SyncAutomated), tt.policy)
		assert.Equal(t, tt.prune, s.Get(SyncPrune), tt.policy)
		assert.Equal(t, tt.selfHeal, s.Get(SyncSelfHeal), tt.policy)
	}

	_, err := ParseSyncPolicy("sometimes")
	assert.True(t, fault.Is(err, fault.Validation))
}

func TestParseEnvironments(t *testing.T) {
	envs, err := ParseEnvironments([]byte(`[{"name":"dev","cluster":"https://kubernetes.default.svc","namespace":"dev"}]`))
	require.NoError(t, err)
	require.Len(t, envs, 1)
	assert.Equal(t, Environment{Name: "dev", Cluster: "https://kubernetes.default.svc", Namespace: "dev"}, envs[0])
}

func TestParseEnvironments_CollectsAllViolations(t *testing.T) {
	_, err := ParseEnvironments([]byte(`[{"name":"dev"},"oops",{"cluster":"c","namespace":"n"}]`))
	assert.Equal(t, []string{
		"Environment 'dev' missing required fields: cluster, namespace",
		"Environment 1 must be a JSON object",
		"Environment '2' missing required fields: name",
	}, violations(t, err))
}

func TestParseEnvironments_Shape(t *testing.T) {
	_, err := ParseEnvironments([]byte(`[]`))
	assert.Equal(t, []string{"At least one environment must be specified"}, violations(t, err))

	_, err = ParseEnvironments([]byte(`{"name":"dev"}`))
	assert.Equal(t, []string{"Environments must be a JSON array"}, violations(t, err))

	_, err = ParseEnvironments([]byte(`[{`))
	assert.True(t, fault.Is(err, fault.Syntax))
}

func TestApplicationParams(t *testing.T) {
	app := Application{
		Name:           "guestbook",
		Namespace:      "argocd",
		RepoURL:        "https://github.com/argoproj/argocd-example-apps.git",
		ChartPath:      "helm-guestbook",
		HelmParameters: "replicas=3,nonsense",
		SyncPolicy:     SyncAutoHeal,
	}
	set, skipped, err := app.Params()
	require.NoError(t, err)
	assert.Equal(t, []string{"nonsense"}, skipped)
	assert.Equal(t, DefaultDestinationCluster, set.Get("destination_cluster"))
	assert.Equal(t, "guestbook", set.Get("destination_namespace"))
	assert.Equal(t, "replicas=3", set.Get("helm_parameters"))
	assert.Equal(t, "true", set.Get(SyncSelfHeal))
	_, hasValues := set.Lookup("values_file")
	assert.False(t, hasValues)
}

func TestApplicationParams_Invalid(t *testing.T) {
	_, _, err := Application{Name: "x", Namespace: " "}.Params()
	vs := violations(t, err)
	assert.Equal(t, []string{
		"Empty required parameters: namespace, repo_url, chart_path",
	}, vs)
}

func TestApplicationSetParams(t *testing.T) {
	set, err := ApplicationSet{
		Name:         "guestbook",
		RepoURL:      "https://github.com/org/repo.git",
		ChartPath:    "charts/app",
		Environments: []Environment{{Name: "dev", Cluster: "c", Namespace: "dev"}},
	}.Params()
	require.NoError(t, err)
	assert.Equal(t, "list", set.Get("generator_type"))
	assert.JSONEq(t, `[{"name":"dev","cluster":"c","namespace":"dev","values_file":"values.yaml"}]`, set.Get("environments"))
	assert.Equal(t, "false", set.Get(SyncAutomated))

	_, err = ApplicationSet{Name: "x", RepoURL: "r", ChartPath: "c"}.Params()
	assert.Equal(t, []string{"Empty required parameters: environments"}, violations(t, err))

	_, err = ApplicationSet{GeneratorType: "matrix"}.Params()
	assert.True(t, fault.Is(err, fault.Validation))
}
