package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. VIGILANTE_GSA_ETRANSFER_URL.
const EnvPrefix = "VIGILANTE"

// Loader provides configuration loading capabilities. It abstracts the source
// of configuration to allow for different implementations like files, environment
// variables, or remote configuration services.
type Loader interface {
	// Load retrieves and parses the configuration from the underlying source.
	// It returns the parsed configuration or an error if loading fails.
	Load(ctx context.Context) (*Config, error)
}

var _ Loader = (*FileLoader)(nil)

// FileLoader reads a YAML file and applies environment overrides on top.
type FileLoader struct {
	// path is the filesystem path to the configuration file. Empty means
	// defaults and environment only.
	path string
}

// NewFileLoader creates a FileLoader for path.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{path: path}
}

var validate = validator.New()

// Load reads, decodes and validates the configuration.
func (l *FileLoader) Load(ctx context.Context) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if l.path != "" {
		v.SetConfigFile(l.path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate.StructCtx(ctx, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override keys
// the file leaves out.
func setDefaults(v *viper.Viper) {
	v.SetDefault("scan_period_ms", 0)
	v.SetDefault("working_dir", "")
	v.SetDefault("pickup_dir", "")
	v.SetDefault("checksum_batch_timeout", 300*time.Second)
	v.SetDefault("policy_file", "")
	v.SetDefault("migrations_url", "file://db/migrations")

	v.SetDefault("gsa.etransfer_url", "")
	v.SetDefault("gsa.checksum_url", "")
	v.SetDefault("gsa.requests_per_second", 20)
	v.SetDefault("gsa.burst", 10)
	v.SetDefault("gsa.request_timeout", 30*time.Second)
	v.SetDefault("gsa.max_retries", 3)
	v.SetDefault("gsa.checksum_workers", 8)

	v.SetDefault("kafka.client_id", "gsa-vigilante")
	v.SetDefault("kafka.status_topic", "")
	v.SetDefault("kafka.dispatch_topic", "")

	v.SetDefault("leader_election.enabled", false)
	v.SetDefault("leader_election.namespace", "")
	v.SetDefault("leader_election.lock_name", "gsa-vigilante")
	v.SetDefault("leader_election.identity", "")
	v.SetDefault("leader_election.kubeconfig", "")
	v.SetDefault("leader_election.lease_duration", 15*time.Second)
	v.SetDefault("leader_election.renew_deadline", 10*time.Second)
	v.SetDefault("leader_election.retry_period", 2*time.Second)

	v.SetDefault("transfer.workers", 4)
	v.SetDefault("transfer.queue_size", 256)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("telemetry.service_name", "gsa-vigilante")
	v.SetDefault("telemetry.exporter_endpoint", "")
	v.SetDefault("telemetry.probability", 0.05)
	v.SetDefault("telemetry.insecure", false)
}
