package privacy

import (
	"github.com/hanzoai/node/internal/svcerr"
)

// AuditPolicy controls what the Policy Enforcer records for a tier.
type AuditPolicy struct {
	LogAccess        bool
	LogModifications bool
	LogFailures      bool
	RetainDays       int
	AlertOnViolation bool
}

// TierPolicy is the per-tier operation policy (spec §3).
type TierPolicy struct {
	AllowedOps                []string // "*" allows everything
	DeniedOps                 []string // "*" denies everything
	DataClassification        string
	RetentionHours            int
	RequireEncryptionAtRest   bool
	RequireEncryptionInTransit bool
	Audit                     AuditPolicy
	Strict                    bool // when true, ops outside AllowedOps are denied
}

func containsOrWildcard(list []string, op string) bool {
	for _, v := range list {
		if v == "*" || v == op {
			return true
		}
	}
	return false
}

// ToolSecurityRequirements is consumed by CheckToolRequirements (spec §3, §4.6).
type ToolSecurityRequirements struct {
	MinTier                Tier
	RequireFreshAttestation bool
	HardwareRequirements   []string
	AllowFallback          bool
}

// PolicyEnforcer holds the per-tier policy table and the audit log
// (spec §4.6).
type PolicyEnforcer struct {
	policies map[Tier]TierPolicy
	audit    *AuditLog
	clock    Clock
}

// NewPolicyEnforcer constructs an enforcer over policies, appending to audit.
func NewPolicyEnforcer(policies map[Tier]TierPolicy, audit *AuditLog, clk Clock) *PolicyEnforcer {
	if clk == nil {
		clk = SystemClock
	}
	return &PolicyEnforcer{policies: policies, audit: audit, clock: clk}
}

func (p *PolicyEnforcer) policyFor(tier Tier) TierPolicy {
	if policy, ok := p.policies[tier]; ok {
		return policy
	}
	return TierPolicy{}
}

// CheckOperation implements spec §4.6(a-d).
func (p *PolicyEnforcer) CheckOperation(op string, required Tier, ctx *SecurityContext) error {
	current := ctx.CurrentTier()
	policy := p.policyFor(required)

	if current < required {
		p.logViolation(op, current, "InsufficientTier")
		return svcerr.TierMismatch(current.String(), required.String())
	}
	if containsOrWildcard(policy.DeniedOps, op) {
		p.logViolation(op, current, "Denied")
		return svcerr.PolicyViolation("Denied")
	}
	if policy.Strict && !containsOrWildcard(policy.AllowedOps, op) {
		p.logViolation(op, current, "NotAllowed")
		return svcerr.PolicyViolation("NotAllowed")
	}

	if policy.Audit.LogAccess {
		p.audit.Append(AuditEntry{
			Timestamp: p.clock.Now(),
			Operation: op,
			Tier:      required,
			Success:   true,
		})
	}
	return nil
}

func (p *PolicyEnforcer) logViolation(op string, tier Tier, violation string) {
	p.audit.Append(AuditEntry{
		Timestamp: p.clock.Now(),
		Operation: op,
		Tier:      tier,
		Success:   false,
		Violation: violation,
	})
}

// CheckToolRequirements verifies min_tier, freshness, and hardware
// requirements (spec §4.6).
func (p *PolicyEnforcer) CheckToolRequirements(reqs ToolSecurityRequirements, ctx *SecurityContext) error {
	if err := ctx.CheckToolAuthorization(reqs.MinTier); err != nil {
		if reqs.AllowFallback {
			return nil
		}
		return err
	}

	if reqs.RequireFreshAttestation {
		att := ctx.Attestation()
		if att == nil {
			return svcerr.AttestationInvalid("fresh attestation required but none present")
		}
		remaining := att.ExpiresAtUnix - p.clock.Now().Unix()
		if remaining < int64(FreshnessWindow.Seconds()) {
			return svcerr.AttestationExpired()
		}
	}

	caps := ctx.Capabilities()
	for _, hw := range reqs.HardwareRequirements {
		if !hardwareFlag(caps, hw) {
			return svcerr.CapabilityMissing(hw)
		}
	}

	return nil
}

func hardwareFlag(caps Capabilities, name string) bool {
	switch name {
	case "sev_snp":
		return caps.SevSnp
	case "tdx":
		return caps.Tdx
	case "sgx":
		return caps.Sgx
	case "h100_cc":
		return caps.H100Cc
	case "blackwell_tee_io":
		return caps.BlackwellTeeIo
	case "sim_eid":
		return caps.SimEid
	default:
		return false
	}
}

// DefaultTierPolicies returns a reasonable default policy table, escalating
// encryption and audit requirements with tier; every tier allows all
// operations.
func DefaultTierPolicies() map[Tier]TierPolicy {
	return map[Tier]TierPolicy{
		Open: {
			AllowedOps: []string{"*"},
			Audit:      AuditPolicy{LogAccess: false, LogFailures: true, RetainDays: 30},
		},
		AtRest: {
			AllowedOps:              []string{"*"},
			RequireEncryptionAtRest: true,
			Audit:                   AuditPolicy{LogAccess: true, LogFailures: true, RetainDays: 90},
		},
		CpuTee: {
			AllowedOps:                 []string{"*"},
			RequireEncryptionAtRest:    true,
			RequireEncryptionInTransit: true,
			Audit:                      AuditPolicy{LogAccess: true, LogModifications: true, LogFailures: true, RetainDays: 180, AlertOnViolation: true},
		},
		GpuCc: {
			AllowedOps:                 []string{"*"},
			RequireEncryptionAtRest:    true,
			RequireEncryptionInTransit: true,
			Audit:                      AuditPolicy{LogAccess: true, LogModifications: true, LogFailures: true, RetainDays: 365, AlertOnViolation: true},
		},
		GpuTeeIo: {
			AllowedOps:                 []string{"*"},
			RequireEncryptionAtRest:    true,
			RequireEncryptionInTransit: true,
			Audit:                      AuditPolicy{LogAccess: true, LogModifications: true, LogFailures: true, RetainDays: 365, AlertOnViolation: true},
		},
	}
}
