package external

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryToolRepositoryGetAndList(t *testing.T) {
	repo := NewMemoryToolRepository()
	repo.Put(ToolRecord{ToolKey: "crypto.sign", Runtime: "native"})
	repo.Put(ToolRecord{ToolKey: "ml.infer", Runtime: "docker"})

	rec, err := repo.GetTool(context.Background(), "crypto.sign")
	require.NoError(t, err)
	assert.Equal(t, "native", rec.Runtime)

	_, err = repo.GetTool(context.Background(), "missing")
	assert.Error(t, err)

	list, err := repo.ListTools(context.Background(), ToolFilter{Runtime: "docker"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "ml.infer", list[0].ToolKey)
}

func TestMemorySecretVaultOAuthToken(t *testing.T) {
	vault := NewMemorySecretVault()
	_, ok, err := vault.GetOAuthToken(context.Background(), "github", "repo.read")
	require.NoError(t, err)
	assert.False(t, ok)

	vault.PutOAuthToken("github", "repo.read", OAuthToken{AccessToken: "tok"})
	tok, ok, err := vault.GetOAuthToken(context.Background(), "github", "repo.read")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok", tok.AccessToken)
}

func TestFakeClockAdvance(t *testing.T) {
	clk := NewFakeClock(time.Unix(1000, 0))
	assert.Equal(t, int64(1000), clk.Now().Unix())
	clk.Advance(5 * time.Second)
	assert.Equal(t, int64(1005), clk.Now().Unix())
}
