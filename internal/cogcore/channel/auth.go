package channel

import (
	"context"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// OIDCAuthenticator validates bearer tokens as OIDC ID tokens issued by a
// configured provider, implementing the Authenticator interface Server
// requires.
type OIDCAuthenticator struct {
	verifier *oidc.IDTokenVerifier
	timeout  time.Duration
}

// NewOIDCAuthenticator discovers the provider's key set at issuerURL and
// builds a verifier scoped to clientID's audience, plus an oauth2.Config
// for the browser-facing login flow that hands the client its initial ID
// token (the websocket endpoint itself only ever sees bearer tokens, never
// runs the redirect dance).
func NewOIDCAuthenticator(ctx context.Context, issuerURL, clientID, clientSecret, redirectURL string) (*OIDCAuthenticator, *oauth2.Config, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, nil, err
	}
	oauthCfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     provider.Endpoint(),
		Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
	}
	return &OIDCAuthenticator{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		timeout:  5 * time.Second,
	}, oauthCfg, nil
}

// Authenticate verifies token and extracts the subject claim as the user
// id. Expired, malformed, or wrong-audience tokens are rejected.
func (a *OIDCAuthenticator) Authenticate(token string) (string, bool) {
	if token == "" {
		return "", false
	}
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	idToken, err := a.verifier.Verify(ctx, token)
	if err != nil {
		return "", false
	}
	return idToken.Subject, true
}

// StaticAuthenticator is a fixed token->user mapping used for local
// development and tests, where standing up an OIDC provider isn't
// practical.
type StaticAuthenticator struct {
	Tokens map[string]string
}

func (a *StaticAuthenticator) Authenticate(token string) (string, bool) {
	userID, ok := a.Tokens[token]
	return userID, ok
}
