package execution

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/hanzoai/node/internal/external"
	"github.com/hanzoai/node/internal/svcerr"
)

// OAuthHandler resolves a tool's declared OAuth requirements against a
// SecretVault (spec §4.9).
type OAuthHandler struct {
	vault external.SecretVault
}

// NewOAuthHandler constructs a handler over vault.
func NewOAuthHandler(vault external.SecretVault) *OAuthHandler {
	return &OAuthHandler{vault: vault}
}

// Resolve looks up a stored token for each spec; the first spec lacking a
// usable token short-circuits with OauthRequired(url), per spec §4.9 (the
// dispatcher surfaces this directly rather than partially resolving).
func (h *OAuthHandler) Resolve(ctx context.Context, specs []external.OAuthSpec, appID, toolKey string) (map[string]external.OAuthToken, error) {
	resolved := make(map[string]external.OAuthToken, len(specs))
	for _, spec := range specs {
		tok, ok, err := h.vault.GetOAuthToken(ctx, spec.Name, toolKey)
		if err != nil {
			return nil, svcerr.IO("oauth_token_lookup", err)
		}
		if ok && tok.AccessToken != "" {
			resolved[spec.Name] = tok
			continue
		}
		return nil, svcerr.OauthRequired(authorizationURL(spec, toolKey))
	}
	return resolved, nil
}

// authorizationURL composes the authorization URL per spec §4.9: every
// component percent-encoded, state generated fresh and bound to the tool.
func authorizationURL(spec external.OAuthSpec, toolKey string) string {
	cfg := oauth2.Config{
		ClientID:    spec.ClientID,
		RedirectURL: spec.RedirectURL,
		Scopes:      spec.Scopes,
		Endpoint:    oauth2.Endpoint{AuthURL: spec.AuthorizationURL, TokenURL: spec.TokenURL},
	}
	state := fmt.Sprintf("%s:%s", toolKey, uuid.NewString())

	var opts []oauth2.AuthCodeOption
	if spec.ResponseType != "" {
		opts = append(opts, oauth2.SetAuthURLParam("response_type", spec.ResponseType))
	}
	return cfg.AuthCodeURL(state, opts...)
}
