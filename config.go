package authcore

import (
	"errors"
	"time"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Sessions  SessionConfig
	LoginFlow LoginFlowConfig
	Remember  RememberConfig
	Directory DirectoryConfig
	Audit     AuditConfig
	Metrics   MetricsConfig
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by authcore APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	// MaxSessions bounds the multi-session context: -1 admits unlimited
	// sessions, 0 closes the context to all new sessions, n > 0 caps it.
	MaxSessions int
	// AuthzCacheSize sizes each session's permission-decision cache.
	AuthzCacheSize int
}

/*
====================================
LOGIN FLOW CONFIG
====================================
*/

// LoginFlowConfig defines a public type used by authcore APIs.
//
// LoginFlowConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginFlowConfig struct {
	MaxAttempts int
}

/*
====================================
REMEMBER CONFIG
====================================
*/

// RememberConfig defines a public type used by authcore APIs.
//
// RememberConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RememberConfig struct {
	Enabled    bool
	SigningKey []byte
	TTL        time.Duration
}

/*
====================================
DIRECTORY CONFIG
====================================
*/

// DirectoryConfig defines a public type used by authcore APIs.
//
// DirectoryConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type DirectoryConfig struct {
	SaltLength int
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by authcore APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Sessions: SessionConfig{
			MaxSessions:    -1,
			AuthzCacheSize: 128,
		},
		LoginFlow: LoginFlowConfig{
			MaxAttempts: 3,
		},
		Remember: RememberConfig{
			Enabled: false,
			TTL:     30 * 24 * time.Hour,
		},
		Directory: DirectoryConfig{
			SaltLength: 16,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Remember.SigningKey = cloneBytes(cfg.Remember.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c Config) Validate() error {
	if c.Sessions.MaxSessions < -1 {
		return errors.New("Sessions.MaxSessions must be -1, 0, or positive")
	}
	if c.Sessions.AuthzCacheSize <= 0 {
		return errors.New("Sessions.AuthzCacheSize must be positive")
	}
	if c.LoginFlow.MaxAttempts <= 0 {
		return errors.New("LoginFlow.MaxAttempts must be positive")
	}
	if c.Remember.Enabled {
		if len(c.Remember.SigningKey) < 16 {
			return errors.New("Remember.SigningKey must be at least 16 bytes")
		}
		if c.Remember.TTL <= 0 {
			return errors.New("Remember.TTL must be positive")
		}
	}
	if c.Directory.SaltLength < 16 {
		return errors.New("Directory.SaltLength must be at least 16")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("Audit.BufferSize must not be negative")
	}
	return nil
}
