// Package config loads wfctl settings from a YAML file, an optional .env file
// and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	envparse "github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/wfctl/internal/fault"
)

const (
	// DefaultNamespace is the Argo namespace used when nothing else is configured.
	DefaultNamespace = "argo"
	// DefaultServiceAccount runs generated workflow templates.
	DefaultServiceAccount = "argo-workflow-sa"
	// DefaultRequestTimeout bounds a single kubectl call.
	DefaultRequestTimeout = 30 * time.Second
	// DefaultPollInterval is the status watch interval.
	DefaultPollInterval = 2 * time.Second
	// DefaultReadAttempts is the number of tries for idempotent reads.
	DefaultReadAttempts = 3

	configDirName  = ".wfctl"
	configFileName = "config.yaml"
	dotenvFileName = ".env"
)

// Settings holds the resolved client configuration.
type Settings struct {
	Namespace      string        `yaml:"namespace,omitempty" env:"ARGO_NAMESPACE"`
	Context        string        `yaml:"context,omitempty" env:"KUBE_CONTEXT"`
	Kubeconfig     string        `yaml:"kubeconfig,omitempty" env:"KUBECONFIG"`
	ServiceAccount string        `yaml:"serviceAccount,omitempty" env:"WFCTL_SERVICE_ACCOUNT"`
	RequestTimeout time.Duration `yaml:"requestTimeout,omitempty" env:"WFCTL_REQUEST_TIMEOUT"`
	PollInterval   time.Duration `yaml:"pollInterval,omitempty" env:"WFCTL_POLL_INTERVAL"`
	ReadAttempts   int           `yaml:"readAttempts,omitempty" env:"WFCTL_READ_ATTEMPTS"`
	LogLevel       string        `yaml:"logLevel,omitempty" env:"WFCTL_LOG_LEVEL"`
	// MetricsFile, when set, receives a Prometheus textfile on exit.
	MetricsFile string `yaml:"metricsFile,omitempty" env:"WFCTL_METRICS_FILE"`
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		Namespace:      DefaultNamespace,
		ServiceAccount: DefaultServiceAccount,
		RequestTimeout: DefaultRequestTimeout,
		PollInterval:   DefaultPollInterval,
		ReadAttempts:   DefaultReadAttempts,
		LogLevel:       "info",
	}
}

// Options selects the sources Load reads.
type Options struct {
	// ConfigPath is an explicit config file; it must exist when set.
	ConfigPath string
	// EnvFile is an explicit .env file; it must exist when set.
	// When empty, ".env" in the working directory is used if present.
	EnvFile string
	// Environ overrides the process environment, mainly for tests.
	Environ map[string]string
}

// DefaultPath returns ~/.wfctl/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// Load resolves settings in order: defaults, config file, .env, environment.
// Command-line flags are applied by the caller on top of the result.
func Load(opts Options) (Settings, error) {
	settings := Defaults()

	path, explicit := opts.ConfigPath, opts.ConfigPath != ""
	if !explicit {
		if p, err := DefaultPath(); err == nil {
			path = p
		}
	}
	if path != "" {
		if err := settings.overlayFile(path, explicit); err != nil {
			return Settings{}, err
		}
	}

	environ := opts.Environ
	if environ == nil {
		environ = fromOS()
	}
	dotenv, err := loadDotenv(opts.EnvFile)
	if err != nil {
		return Settings{}, err
	}
	if err := settings.overlayEnv(merge(dotenv, environ)); err != nil {
		return Settings{}, err
	}

	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// LoadFile parses a config file without applying any other source.
func LoadFile(path string) (Settings, error) {
	settings := Defaults()
	if err := settings.overlayFile(path, true); err != nil {
		return Settings{}, err
	}
	return settings, nil
}

// Save writes settings to path, creating the parent directory.
func Save(path string, s Settings) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %q: %w", path, err)
	}
	return nil
}

// Validate reports every invalid setting at once.
func (s Settings) Validate() error {
	var violations []string
	if strings.TrimSpace(s.Namespace) == "" {
		violations = append(violations, "namespace must not be empty")
	}
	if s.RequestTimeout <= 0 {
		violations = append(violations, "requestTimeout must be positive")
	}
	if s.PollInterval <= 0 {
		violations = append(violations, "pollInterval must be positive")
	}
	if s.ReadAttempts < 1 {
		violations = append(violations, "readAttempts must be at least 1")
	}
	if len(violations) > 0 {
		return fault.Invalid(violations...)
	}
	return nil
}

func (s *Settings) overlayFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %q: %w", path, err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return fault.Wrap(fault.Syntax, err, "parse config %q", path)
	}
	return nil
}

func (s *Settings) overlayEnv(environ map[string]string) error {
	if err := envparse.ParseWithOptions(s, envparse.Options{Environment: environ}); err != nil {
		return fault.Wrap(fault.Syntax, err, "parse environment")
	}
	return nil
}

func loadDotenv(path string) (map[string]string, error) {
	explicit := path != ""
	if !explicit {
		path = dotenvFileName
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return nil, nil
		}
		return nil, fmt.Errorf("open env file %q: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	vars, err := godotenv.Parse(f)
	if err != nil {
		return nil, fault.Wrap(fault.Syntax, err, "parse env file %q", path)
	}
	return vars, nil
}

func fromOS() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}

// merge combines maps, later maps overriding earlier keys.
func merge(sets ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}
