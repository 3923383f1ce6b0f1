package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is returned for malformed configuration values
var ErrInvalid = errors.New("invalid configuration")

// Config holds the process-wide controller configuration.
// It is loaded once at startup and never mutated afterwards.
type Config struct {
	PodFailureThreshold int32 `yaml:"podFailureThreshold"`

	CheckInterval     time.Duration `yaml:"checkInterval"`
	NodeCheckInterval time.Duration `yaml:"nodeCheckInterval"`
	PodCooldown       time.Duration `yaml:"podCooldown"`
	NodeCooldown      time.Duration `yaml:"nodeCooldown"`

	RollbackEnabled bool          `yaml:"rollbackEnabled"`
	RollbackTimeout time.Duration `yaml:"rollbackTimeout"`
	HelmBinary      string        `yaml:"helmBinary"`

	RebootEnabled    bool   `yaml:"rebootEnabled"`
	RebootAnnotation string `yaml:"rebootAnnotation"`

	NodePressureFailure bool `yaml:"nodePressureFailure"`

	NotificationsEnabled bool   `yaml:"notificationsEnabled"`
	WebhookURL           string `yaml:"webhookURL"`
	SlackChannel         string `yaml:"slackChannel"`

	ExcludedNamespaces []string `yaml:"excludedNamespaces"`
	NamePrefix         string   `yaml:"namePrefix"`

	HealthAddr    string        `yaml:"healthAddr"`
	ShutdownGrace time.Duration `yaml:"shutdownGrace"`

	StateDir           string `yaml:"stateDir"`
	HistoryDatabaseURL string `yaml:"historyDatabaseURL"`

	LogLevel   string `yaml:"logLevel"`
	LogFormat  string `yaml:"logFormat"`
	Kubeconfig string `yaml:"kubeconfig"`
}

// Default returns the configuration used when nothing is overridden
func Default() *Config {
	return &Config{
		PodFailureThreshold:  3,
		CheckInterval:        30 * time.Second,
		PodCooldown:          60 * time.Second,
		NodeCooldown:         300 * time.Second,
		RollbackEnabled:      true,
		RollbackTimeout:      300 * time.Second,
		HelmBinary:           "helm",
		RebootEnabled:        true,
		RebootAnnotation:     "weave.works/kured-node-lock",
		NotificationsEnabled: false,
		SlackChannel:         "#alerts",
		ExcludedNamespaces:   []string{"kube-system", "monitoring", "chaos-engineering", "self-healing"},
		NamePrefix:           "self-healing-controller-",
		HealthAddr:           ":8080",
		ShutdownGrace:        10 * time.Second,
		LogLevel:             "info",
		LogFormat:            "console",
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment, in that order of precedence (environment wins).
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
		}
	}

	e := envReader{lookup: lookup}
	e.int32("POD_FAILURE_THRESHOLD", &cfg.PodFailureThreshold)
	e.duration("CHECK_INTERVAL", &cfg.CheckInterval)
	e.duration("NODE_CHECK_INTERVAL", &cfg.NodeCheckInterval)
	e.duration("POD_COOLDOWN", &cfg.PodCooldown)
	e.duration("NODE_COOLDOWN", &cfg.NodeCooldown)
	e.bool("HELM_ROLLBACK_ENABLED", &cfg.RollbackEnabled)
	e.duration("HELM_ROLLBACK_TIMEOUT", &cfg.RollbackTimeout)
	e.string("HELM_BINARY", &cfg.HelmBinary)
	e.bool("KURED_INTEGRATION_ENABLED", &cfg.RebootEnabled)
	e.string("REBOOT_ANNOTATION", &cfg.RebootAnnotation)
	e.bool("NODE_PRESSURE_FAILURE_ENABLED", &cfg.NodePressureFailure)
	e.bool("SLACK_NOTIFICATIONS_ENABLED", &cfg.NotificationsEnabled)
	e.string("SLACK_WEBHOOK_URL", &cfg.WebhookURL)
	e.string("SLACK_CHANNEL", &cfg.SlackChannel)
	e.list("EXCLUDED_NAMESPACES", &cfg.ExcludedNamespaces)
	e.string("CONTROLLER_NAME_PREFIX", &cfg.NamePrefix)
	e.string("HEALTH_ADDR", &cfg.HealthAddr)
	e.duration("SHUTDOWN_GRACE_PERIOD", &cfg.ShutdownGrace)
	e.string("STATE_DIR", &cfg.StateDir)
	e.string("HISTORY_DATABASE_URL", &cfg.HistoryDatabaseURL)
	e.string("LOG_LEVEL", &cfg.LogLevel)
	e.string("LOG_FORMAT", &cfg.LogFormat)
	e.string("KUBECONFIG", &cfg.Kubeconfig)
	if e.err != nil {
		return nil, e.err
	}

	// Nodes are checked less frequently than workloads
	if cfg.NodeCheckInterval == 0 {
		cfg.NodeCheckInterval = 2 * cfg.CheckInterval
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.PodFailureThreshold < 0 {
		return fmt.Errorf("%w: pod failure threshold must be >= 0", ErrInvalid)
	}
	if c.CheckInterval <= 0 || c.NodeCheckInterval <= 0 {
		return fmt.Errorf("%w: poll intervals must be positive", ErrInvalid)
	}
	if c.ShutdownGrace <= 0 {
		return fmt.Errorf("%w: shutdown grace period must be positive", ErrInvalid)
	}
	if c.PodCooldown < 0 || c.NodeCooldown < 0 {
		return fmt.Errorf("%w: cooldown windows must be >= 0", ErrInvalid)
	}
	if c.RollbackEnabled && c.RollbackTimeout <= 0 {
		return fmt.Errorf("%w: rollback timeout must be positive", ErrInvalid)
	}
	if c.RebootEnabled && c.RebootAnnotation == "" {
		return fmt.Errorf("%w: reboot annotation must be set when reboot trigger is enabled", ErrInvalid)
	}
	return nil
}

// NotificationsActive reports whether notifications will actually be delivered.
// An empty endpoint disables delivery even when notifications are enabled.
func (c *Config) NotificationsActive() bool {
	return c.NotificationsEnabled && c.WebhookURL != ""
}

// envReader applies environment overrides, keeping the first parse error
type envReader struct {
	lookup func(string) (string, bool)
	err    error
}

func (e *envReader) get(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func (e *envReader) fail(key, value string, err error) {
	e.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, value, err)
}

func (e *envReader) string(key string, dst *string) {
	if v, ok := e.get(key); ok {
		*dst = v
	}
}

func (e *envReader) bool(key string, dst *bool) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = b
}

func (e *envReader) int32(key string, dst *int32) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	n, err := strconv.ParseInt(v, 10, 32)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = int32(n)
}

// duration accepts either whole seconds ("30") or a Go duration ("30s")
func (e *envReader) duration(key string, dst *time.Duration) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	d, err := parseSeconds(v)
	if err != nil {
		e.fail(key, v, err)
		return
	}
	*dst = d
}

func (e *envReader) list(key string, dst *[]string) {
	v, ok := e.get(key)
	if !ok {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func parseSeconds(v string) (time.Duration, error) {
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(v)
}
