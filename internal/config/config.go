// Package config holds the vigilante's runtime configuration.
package config

import (
	"time"
)

// Config represents the top-level configuration.
type Config struct {
	// ScanPeriodMS is the reconciliation period in milliseconds. Values <= 0
	// select the default of 30 minutes.
	ScanPeriodMS int64 `mapstructure:"scan_period_ms"`

	WorkingDir string `mapstructure:"working_dir" validate:"required"`
	PickupDir  string `mapstructure:"pickup_dir" validate:"required"`

	// ChecksumBatchTimeout bounds one batch of checksum registry lookups.
	ChecksumBatchTimeout time.Duration `mapstructure:"checksum_batch_timeout" validate:"gte=0"`

	// PolicyFile lists dataset labels that are never archived. Optional.
	PolicyFile string `mapstructure:"policy_file"`

	// MigrationsURL locates the schema migrations, e.g. file:///app/db/migrations.
	MigrationsURL string `mapstructure:"migrations_url"`

	GSA            GSAConfig            `mapstructure:"gsa"`
	Databases      []DatabaseEndpoint   `mapstructure:"databases" validate:"dive"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	LeaderElection LeaderElectionConfig `mapstructure:"leader_election"`
	Transfer       TransferConfig       `mapstructure:"transfer"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
}

// ScanPeriodMillis returns the configured reconciliation period.
func (c *Config) ScanPeriodMillis() int64 { return c.ScanPeriodMS }

// GSAConfig locates the archive services.
type GSAConfig struct {
	ETransferURL      string        `mapstructure:"etransfer_url" validate:"required,url"`
	ChecksumURL       string        `mapstructure:"checksum_url" validate:"required,url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" validate:"gte=0"`
	MaxRetries        uint64        `mapstructure:"max_retries"`
	ChecksumWorkers   int           `mapstructure:"checksum_workers" validate:"gte=0"`
}

// DatabaseEndpoint is one logical state database. Endpoints are tried in
// order; each endpoint is split across one or more shards.
type DatabaseEndpoint struct {
	Name   string   `mapstructure:"name" validate:"required"`
	Shards []string `mapstructure:"shards" validate:"min=1,dive,required"`
}

// KafkaConfig enables publishing dataset events. No brokers means events
// stay in process.
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ClientID      string   `mapstructure:"client_id"`
	StatusTopic   string   `mapstructure:"status_topic" validate:"required_with=Brokers"`
	DispatchTopic string   `mapstructure:"dispatch_topic"`
}

// LeaderElectionConfig configures the Kubernetes lease.
type LeaderElectionConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Namespace     string        `mapstructure:"namespace" validate:"required_if=Enabled true"`
	LockName      string        `mapstructure:"lock_name" validate:"required_if=Enabled true"`
	Identity      string        `mapstructure:"identity"`
	KubeConfig    string        `mapstructure:"kubeconfig"`
	LeaseDuration time.Duration `mapstructure:"lease_duration"`
	RenewDeadline time.Duration `mapstructure:"renew_deadline"`
	RetryPeriod   time.Duration `mapstructure:"retry_period"`
}

// TransferConfig sizes the copy worker pool.
type TransferConfig struct {
	Workers   int `mapstructure:"workers" validate:"gte=1"`
	QueueSize int `mapstructure:"queue_size" validate:"gte=1"`
}

// HTTPConfig configures the health and admin listener.
type HTTPConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

// TelemetryConfig configures tracing and metrics export.
type TelemetryConfig struct {
	ServiceName      string  `mapstructure:"service_name" validate:"required"`
	ExporterEndpoint string  `mapstructure:"exporter_endpoint"`
	Probability      float64 `mapstructure:"probability" validate:"gte=0,lte=1"`
	Insecure         bool    `mapstructure:"insecure"`
}
