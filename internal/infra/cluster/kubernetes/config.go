package kubernetes

import "time"

// K8sConfig configures lease based leader election.
type K8sConfig struct {
	Namespace    string
	LeaderLockID string
	Identity     string
	// KubeConfig is used when not running in a cluster. Empty means the
	// default kubeconfig location.
	KubeConfig string

	LeaseDuration time.Duration
	RenewDeadline time.Duration
	RetryPeriod   time.Duration
}

func (c K8sConfig) withDefaults() K8sConfig {
	if c.LeaseDuration <= 0 {
		c.LeaseDuration = 15 * time.Second
	}
	if c.RenewDeadline <= 0 {
		c.RenewDeadline = 10 * time.Second
	}
	if c.RetryPeriod <= 0 {
		c.RetryPeriod = 2 * time.Second
	}
	return c
}
