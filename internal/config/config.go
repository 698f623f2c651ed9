// Package config loads the process-wide environment configuration from
// spec §6: attestation mode, remote attestation service URLs, and listener
// addresses. It follows the teacher's secret-then-env-then-default priority
// chain, generalized behind a SecretSource interface instead of a concrete
// confidential-computing secret store.
package config

import (
	"strconv"
	"strings"
	"time"
)

// SecretSource resolves a configuration key against a secret store (a vault,
// a TEE-sealed secret file, a Kubernetes Secret mount). Resolved first,
// ahead of the environment.
type SecretSource interface {
	Secret(key string) (value string, ok bool)
}

// NoSecrets is a SecretSource that never resolves anything; environment
// variables and defaults are used directly.
type NoSecrets struct{}

func (NoSecrets) Secret(string) (string, bool) { return "", false }

// EnvLookup abstracts os.Getenv so tests can inject a fixed environment
// instead of mutating the process environment.
type EnvLookup func(key string) (string, bool)

// Loader resolves configuration values with the priority:
// SecretSource > environment variable > default.
type Loader struct {
	Secrets SecretSource
	Env     EnvLookup
}

// NewLoader builds a Loader over secrets and the env lookup it is given; a
// nil secrets source is replaced with NoSecrets.
func NewLoader(secrets SecretSource, env EnvLookup) *Loader {
	if secrets == nil {
		secrets = NoSecrets{}
	}
	return &Loader{Secrets: secrets, Env: env}
}

func (l *Loader) String(key, defaultValue string) string {
	if value, ok := l.Secrets.Secret(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	if value, ok := l.Env(key); ok {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return defaultValue
}

func (l *Loader) Duration(key string, defaultValue time.Duration) time.Duration {
	raw := l.String(key, "")
	if raw == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		return parsed
	}
	return defaultValue
}

func (l *Loader) Int(key string, defaultValue int) int {
	raw := l.String(key, "")
	if raw == "" {
		return defaultValue
	}
	if parsed, err := strconv.Atoi(raw); err == nil {
		return parsed
	}
	return defaultValue
}

func (l *Loader) Bool(key string, defaultValue bool) bool {
	raw := strings.ToLower(l.String(key, ""))
	if raw == "" {
		return defaultValue
	}
	return raw == "true" || raw == "1" || raw == "yes" || raw == "y"
}

// AttestationMode is the ATTESTATION_MODE environment variable's domain.
type AttestationMode string

const (
	ModeProduction  AttestationMode = "production"
	ModeSimulation  AttestationMode = "simulation"
	ModeDevelopment AttestationMode = "development"
)

// NodeConfig is the full set of process-wide configuration values from spec §6.
type NodeConfig struct {
	AttestationMode AttestationMode

	SevSnpAttestationService   string
	TdxAttestationService      string
	NvidiaAttestationService   string

	NodeIP      string
	NodePort    int
	NodeAPIIP   string
	NodeAPIPort int

	AttestationRefreshInterval time.Duration
	AuditRetentionDays         int
	JobQueueHighWaterMark      int
	SubAgentMaxDepth           int
}

// Load reads NodeConfig from l. debugBuild selects the ATTESTATION_MODE
// default (development for debug builds, production otherwise) per spec §6.
func Load(l *Loader, debugBuild bool) NodeConfig {
	defaultMode := ModeProduction
	if debugBuild {
		defaultMode = ModeDevelopment
	}

	mode := AttestationMode(strings.ToLower(l.String("ATTESTATION_MODE", string(defaultMode))))
	switch mode {
	case ModeProduction, ModeSimulation, ModeDevelopment:
	default:
		mode = defaultMode
	}

	return NodeConfig{
		AttestationMode: mode,

		SevSnpAttestationService: l.String("SEV_SNP_ATTESTATION_SERVICE", ""),
		TdxAttestationService:    l.String("TDX_ATTESTATION_SERVICE", ""),
		NvidiaAttestationService: l.String("NVIDIA_ATTESTATION_SERVICE", ""),

		NodeIP:      l.String("NODE_IP", "0.0.0.0"),
		NodePort:    l.Int("NODE_PORT", 7700),
		NodeAPIIP:   l.String("NODE_API_IP", "0.0.0.0"),
		NodeAPIPort: l.Int("NODE_API_PORT", 7701),

		AttestationRefreshInterval: l.Duration("ATTESTATION_REFRESH_INTERVAL", time.Minute),
		AuditRetentionDays:         l.Int("AUDIT_RETENTION_DAYS", 90),
		JobQueueHighWaterMark:      l.Int("JOB_QUEUE_HIGH_WATER_MARK", 1000),
		SubAgentMaxDepth:           l.Int("SUBAGENT_MAX_DEPTH", 4),
	}
}
