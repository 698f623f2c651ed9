package privacy

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteVerificationClientConfirmSucceeds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewRemoteVerificationClient(time.Second)
	result := &AttestationResult{
		Verified: true, MaxTier: CpuTee,
		Measurements: []Measurement{{Name: "measurement", Value: []byte{1, 2, 3}}},
		PlatformInfo: map[string]string{"variant": "sev_snp"},
	}

	err := client.Confirm(context.Background(), srv.URL, result)
	require.NoError(t, err)
}

func TestRemoteVerificationClientConfirmRejectsNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewRemoteVerificationClient(time.Second)
	result := &AttestationResult{Verified: true, MaxTier: CpuTee, PlatformInfo: map[string]string{"variant": "sev_snp"}}

	err := client.Confirm(context.Background(), srv.URL, result)
	assert.Error(t, err)
}

func TestRemoteVerificationClientConfirmRequiresServiceURL(t *testing.T) {
	client := NewRemoteVerificationClient(time.Second)
	err := client.Confirm(context.Background(), "", &AttestationResult{})
	assert.Error(t, err)
}
