package external

import (
	"context"
	"fmt"
	"sync"

	nodecrypto "github.com/hanzoai/node/infrastructure/crypto"
)

// SealedMemorySecretVault is an in-process SecretVault that keeps every
// stored value sealed under envelope encryption instead of as plaintext, so
// a heap dump of a confidential node does not also dump its OAuth tokens.
// masterKey must be 32 bytes; each (name, toolKey) pair derives its own key.
type SealedMemorySecretVault struct {
	mu        sync.RWMutex
	masterKey []byte
	tokens    map[string][]byte
	secrets   map[string][]byte
}

// NewSealedMemorySecretVault constructs an empty vault sealed under masterKey.
func NewSealedMemorySecretVault(masterKey []byte) *SealedMemorySecretVault {
	return &SealedMemorySecretVault{
		masterKey: masterKey,
		tokens:    make(map[string][]byte),
		secrets:   make(map[string][]byte),
	}
}

// PutOAuthToken seals and stores a token for (name, toolKey).
func (v *SealedMemorySecretVault) PutOAuthToken(name, toolKey string, tok OAuthToken) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	subject := []byte(tokenKey(name, toolKey))
	access, err := nodecrypto.EncryptEnvelope(v.masterKey, subject, "oauth.access", []byte(tok.AccessToken))
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := nodecrypto.EncryptEnvelope(v.masterKey, subject, "oauth.refresh", []byte(tok.RefreshToken))
	if err != nil {
		return fmt.Errorf("seal refresh token: %w", err)
	}

	v.tokens[tokenKey(name, toolKey)] = append(access, append([]byte{'\n'}, append(refresh, []byte(fmt.Sprintf("\n%d", tok.ExpiresAtUnix))...)...)...)
	return nil
}

// PutSecret seals and stores a generic secret value.
func (v *SealedMemorySecretVault) PutSecret(key, value string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	sealed, err := nodecrypto.EncryptEnvelope(v.masterKey, []byte(key), "secret", []byte(value))
	if err != nil {
		return fmt.Errorf("seal secret: %w", err)
	}
	v.secrets[key] = sealed
	return nil
}

func (v *SealedMemorySecretVault) GetOAuthToken(ctx context.Context, name, toolKey string) (OAuthToken, bool, error) {
	v.mu.RLock()
	raw, ok := v.tokens[tokenKey(name, toolKey)]
	v.mu.RUnlock()
	if !ok {
		return OAuthToken{}, false, nil
	}

	parts := splitThree(raw, '\n')
	if len(parts) != 3 {
		return OAuthToken{}, false, fmt.Errorf("sealed token record malformed")
	}

	subject := []byte(tokenKey(name, toolKey))
	access, err := nodecrypto.DecryptEnvelope(v.masterKey, subject, "oauth.access", parts[0])
	if err != nil {
		return OAuthToken{}, false, fmt.Errorf("unseal access token: %w", err)
	}
	refresh, err := nodecrypto.DecryptEnvelope(v.masterKey, subject, "oauth.refresh", parts[1])
	if err != nil {
		return OAuthToken{}, false, fmt.Errorf("unseal refresh token: %w", err)
	}

	var expires int64
	fmt.Sscanf(string(parts[2]), "%d", &expires)

	return OAuthToken{AccessToken: string(access), RefreshToken: string(refresh), ExpiresAtUnix: expires}, true, nil
}

func (v *SealedMemorySecretVault) GetSecret(ctx context.Context, key string) (string, bool, error) {
	v.mu.RLock()
	sealed, ok := v.secrets[key]
	v.mu.RUnlock()
	if !ok {
		return "", false, nil
	}

	plain, err := nodecrypto.DecryptEnvelope(v.masterKey, []byte(key), "secret", sealed)
	if err != nil {
		return "", false, fmt.Errorf("unseal secret: %w", err)
	}
	return string(plain), true, nil
}

func splitThree(b []byte, sep byte) [][]byte {
	var out [][]byte
	start := 0
	for i, c := range b {
		if c == sep {
			out = append(out, b[start:i])
			start = i + 1
		}
	}
	out = append(out, b[start:])
	return out
}
