package privacy

import (
	"crypto/ed25519"
	"crypto/sha256"
	"sync"
	"time"
)

// AuditEntry is one append-only audit record (spec §3).
type AuditEntry struct {
	Timestamp time.Time
	Operation string
	Tier      Tier
	Actor     string
	ToolID    string
	Success   bool
	Violation string
	Metadata  map[string]interface{}
}

func (e AuditEntry) hash() [32]byte {
	h := sha256.New()
	h.Write([]byte(e.Operation))
	h.Write([]byte{0})
	h.Write([]byte(e.Tier.String()))
	h.Write([]byte{0})
	h.Write([]byte(e.Violation))
	h.Write([]byte{0})
	if e.Success {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Checkpoint is an ed25519-signed tamper-evident marker over a run of audit
// entries (SPEC_FULL §C6 detail). Supplementary: its absence does not change
// the append-only contract.
type Checkpoint struct {
	UpToIndex int
	Hash      [32]byte
	Signature []byte
}

// AuditLog is the append-only audit log (spec §4.6). Single writer; readers
// snapshot.
type AuditLog struct {
	mu             sync.Mutex
	entries        []AuditEntry
	retentionDays  int
	checkpointEvery int
	signer         ed25519.PrivateKey
	checkpoints    []Checkpoint
}

// NewAuditLog constructs a log. signer may be nil to disable checkpoint
// signing; checkpointEvery <= 0 also disables it.
func NewAuditLog(retentionDays, checkpointEvery int, signer ed25519.PrivateKey) *AuditLog {
	return &AuditLog{retentionDays: retentionDays, checkpointEvery: checkpointEvery, signer: signer}
}

// Append adds entry and, if configured, emits a signed checkpoint every N
// entries.
func (l *AuditLog) Append(entry AuditEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.entries = append(l.entries, entry)

	if l.signer != nil && l.checkpointEvery > 0 && len(l.entries)%l.checkpointEvery == 0 {
		l.checkpointLocked()
	}
}

func (l *AuditLog) checkpointLocked() {
	h := sha256.New()
	for _, e := range l.entries {
		eh := e.hash()
		h.Write(eh[:])
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	sig := ed25519.Sign(l.signer, sum[:])
	l.checkpoints = append(l.checkpoints, Checkpoint{UpToIndex: len(l.entries), Hash: sum, Signature: sig})
}

// Get returns up to limit entries, newest-first.
func (l *AuditLog) Get(limit int) []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.entries)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]AuditEntry, limit)
	for i := 0; i < limit; i++ {
		out[i] = l.entries[n-1-i]
	}
	return out
}

// Cleanup drops entries older than retainDays.
func (l *AuditLog) Cleanup(retainDays int) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, -retainDays)
	kept := l.entries[:0]
	removed := 0
	for _, e := range l.entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return removed
}

// Checkpoints returns a snapshot of recorded checkpoints.
func (l *AuditLog) Checkpoints() []Checkpoint {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Checkpoint, len(l.checkpoints))
	copy(out, l.checkpoints)
	return out
}

// VerifyCheckpoint checks cp.Signature over cp.Hash against pub.
func VerifyCheckpoint(pub ed25519.PublicKey, cp Checkpoint) bool {
	return ed25519.Verify(pub, cp.Hash[:], cp.Signature)
}
