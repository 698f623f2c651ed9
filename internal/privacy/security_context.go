package privacy

import (
	"context"
	"sync"

	"github.com/hanzoai/node/internal/svcerr"
	"github.com/sirupsen/logrus"
)

// SecurityContext is the node's single mutable source of truth for the
// current privacy tier (spec §3, §4.5). It is exclusively owned by this
// component and exposed to every other component by read-only handle.
type SecurityContext struct {
	mu sync.RWMutex

	currentTier   Tier
	attestation   *AttestationResult
	capabilities  Capabilities
	enforceStrict bool

	generator *Generator
	verifier  *Verifier
	cache     Store
	clock     Clock
	log       *logrus.Entry

	remoteVerify *RemoteVerificationClient
	serviceURLs  map[string]string // variant -> external verification service URL
}

// NewSecurityContext constructs a context at Open. Call Initialize to reach
// its target tier.
func NewSecurityContext(gen *Generator, ver *Verifier, cache Store, clk Clock, enforceStrict bool, log *logrus.Entry) *SecurityContext {
	if clk == nil {
		clk = SystemClock
	}
	return &SecurityContext{
		currentTier:   Open,
		enforceStrict: enforceStrict,
		generator:     gen,
		verifier:      ver,
		cache:         cache,
		clock:         clk,
		log:           log,
	}
}

// WithRemoteVerification equips the context with a production-mode external
// verification client; serviceURLs maps a measurement variant ("sev_snp",
// "tdx", "h100cc", "blackwell_tee_io") to the service that confirms it.
// Only consulted when the bound Verifier runs in ModeProduction.
func (s *SecurityContext) WithRemoteVerification(client *RemoteVerificationClient, serviceURLs map[string]string) *SecurityContext {
	s.remoteVerify = client
	s.serviceURLs = serviceURLs
	return s
}

// CurrentTier returns the current tier under a read lock.
func (s *SecurityContext) CurrentTier() Tier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentTier
}

// Attestation returns a copy of the current attestation pointer (read-only).
func (s *SecurityContext) Attestation() *AttestationResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.attestation
}

// Capabilities returns the detected capabilities.
func (s *SecurityContext) Capabilities() Capabilities {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.capabilities
}

// Initialize detects capabilities, targets requiredTier (or the maximum the
// capabilities support when nil), and attempts attestation if the target
// tier requires it. On failure: strict mode propagates the error; otherwise
// the context degrades silently to Open (spec §4.5).
func (s *SecurityContext) Initialize(caps Capabilities, requiredTier *Tier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.capabilities = caps
	target := caps.MaxSupportedTier()
	if requiredTier != nil {
		target = *requiredTier
	}

	if !RequiresAttestation(target) {
		s.currentTier = target
		return nil
	}

	result, err := s.attestLocked(target)
	if err != nil {
		if s.enforceStrict {
			return err
		}
		if s.log != nil {
			s.log.WithError(err).Warn("attestation failed, degrading to Open tier")
		}
		s.currentTier = Open
		s.attestation = nil
		return nil
	}

	s.currentTier = target
	s.attestation = result
	return nil
}

// attestLocked runs generate -> verify -> optional remote confirmation ->
// cache.set. Caller holds s.mu.
func (s *SecurityContext) attestLocked(tier Tier) (*AttestationResult, error) {
	blob, err := s.generator.Generate(tier)
	if err != nil {
		return nil, svcerr.AttestationUnavailable(err)
	}
	result, err := s.verifier.Verify(blob)
	if err != nil {
		return nil, err
	}

	if s.verifier.Mode == ModeProduction && s.remoteVerify != nil {
		serviceURL := s.serviceURLs[result.PlatformInfo["variant"]]
		if err := s.remoteVerify.Confirm(context.Background(), serviceURL, result); err != nil {
			return nil, err
		}
	}

	if s.cache != nil {
		s.cache.Set(CacheKey{Tier: tier, PlatformID: "local"}, result)
	}
	return result, nil
}

// CheckToolAuthorization implements spec §8 property 1 (tier monotonicity):
// succeeds iff current_tier >= required AND, when attestation is required,
// it is present, verified, and unexpired.
func (s *SecurityContext) CheckToolAuthorization(required Tier) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentTier < required {
		return svcerr.TierMismatch(s.currentTier.String(), required.String())
	}
	if RequiresAttestation(required) {
		if s.attestation == nil {
			return svcerr.AttestationInvalid("no attestation present")
		}
		if !IsUsable(s.attestation, s.clock) {
			return svcerr.AttestationExpired()
		}
	}
	return nil
}

// ExecuteWithTier authorizes required, then runs thunk. The thunk MUST
// complete before the context can be mutated by a concurrent Initialize or
// RefreshAttestation — both take the same exclusive write path, so a thunk
// holding only a read-check does not block other readers but is itself
// never interleaved with a tier mutation.
func (s *SecurityContext) ExecuteWithTier(required Tier, thunk func() (interface{}, error)) (interface{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentTier < required {
		return nil, svcerr.TierMismatch(s.currentTier.String(), required.String())
	}
	if RequiresAttestation(required) {
		if s.attestation == nil {
			return nil, svcerr.AttestationInvalid("no attestation present")
		}
		if !IsUsable(s.attestation, s.clock) {
			return nil, svcerr.AttestationExpired()
		}
	}
	return thunk()
}

// RefreshAttestation regenerates the current tier's attestation if less than
// FreshnessWindow remains before expiry (spec §4.5, §8 scenario S3).
func (s *SecurityContext) RefreshAttestation() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !RequiresAttestation(s.currentTier) {
		return nil
	}
	if s.attestation != nil {
		remaining := s.attestation.ExpiresAtUnix - s.clock.Now().Unix()
		if remaining > int64(FreshnessWindow.Seconds()) {
			return nil
		}
	}

	result, err := s.attestLocked(s.currentTier)
	if err != nil {
		return svcerr.AttestationExpired()
	}
	s.attestation = result
	return nil
}
