package privacy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/hanzoai/node/internal/svcerr"
)

// RemoteVerificationClient posts a production-mode attestation's measurements
// to an external verification service and requires a 2xx response, mirroring
// the teacher's postJSON outbound-call shape (services/requests/marble).
// Simulation and development modes never reach this client.
type RemoteVerificationClient struct {
	httpClient *http.Client
}

// NewRemoteVerificationClient constructs a client with a bounded timeout;
// callers still bound the call with ctx.
func NewRemoteVerificationClient(timeout time.Duration) *RemoteVerificationClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RemoteVerificationClient{httpClient: &http.Client{Timeout: timeout}}
}

type remoteVerifyRequest struct {
	Variant      string            `json:"variant"`
	Measurements map[string]string `json:"measurements"`
	PlatformInfo map[string]string `json:"platform_info"`
}

// Confirm POSTs result to serviceURL, failing closed on any non-2xx
// response, transport error, or an empty serviceURL (spec §4.3: production
// verification is never silently skipped).
func (c *RemoteVerificationClient) Confirm(ctx context.Context, serviceURL string, result *AttestationResult) error {
	if serviceURL == "" {
		return svcerr.AttestationUnavailable(fmt.Errorf("no remote verification service configured"))
	}

	measurements := make(map[string]string, len(result.Measurements))
	for _, m := range result.Measurements {
		hexVal, _ := result.MeasurementHex(m.Name)
		measurements[m.Name] = hexVal
	}

	payload, err := json.Marshal(remoteVerifyRequest{
		Variant:      result.PlatformInfo["variant"],
		Measurements: measurements,
		PlatformInfo: result.PlatformInfo,
	})
	if err != nil {
		return svcerr.AttestationInvalid("encode remote verification request: " + err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, serviceURL, bytes.NewReader(payload))
	if err != nil {
		return svcerr.AttestationUnavailable(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return svcerr.AttestationUnavailable(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return svcerr.AttestationInvalid(fmt.Sprintf("remote verification rejected attestation: status %d", resp.StatusCode))
	}
	return nil
}
