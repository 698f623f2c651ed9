package privacy

import (
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogAppendAndGet(t *testing.T) {
	log := NewAuditLog(90, 0, nil)
	log.Append(AuditEntry{Timestamp: time.Now(), Operation: "invoke", Tier: CpuTee, Success: true})
	log.Append(AuditEntry{Timestamp: time.Now(), Operation: "invoke", Tier: CpuTee, Success: false, Violation: "Denied"})

	entries := log.Get(0)
	require.Len(t, entries, 2)
	assert.False(t, entries[0].Success, "newest-first order")
}

func TestAuditLogCheckpointSigning(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	log := NewAuditLog(90, 2, priv)
	log.Append(AuditEntry{Operation: "a", Success: true})
	log.Append(AuditEntry{Operation: "b", Success: true})

	cps := log.Checkpoints()
	require.Len(t, cps, 1)
	assert.Equal(t, 2, cps[0].UpToIndex)
	assert.True(t, VerifyCheckpoint(pub, cps[0]))
}

func TestAuditLogCleanupRemovesOldEntries(t *testing.T) {
	log := NewAuditLog(30, 0, nil)
	log.Append(AuditEntry{Timestamp: time.Now().AddDate(0, 0, -40), Operation: "old"})
	log.Append(AuditEntry{Timestamp: time.Now(), Operation: "new"})

	removed := log.Cleanup(30)
	assert.Equal(t, 1, removed)
	assert.Len(t, log.Get(0), 1)
}
