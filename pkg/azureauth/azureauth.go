// Package azureauth acquires Azure AD bearer tokens through the default
// credential chain (environment, managed identity, CLI). It implements
// voicelive.TokenProvider.
package azureauth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
)

// credential is the subset of azcore.TokenCredential we need; it lets tests
// substitute a fake.
type credential interface {
	GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error)
}

// refreshMargin is how long before expiry a cached token is considered
// stale.
const refreshMargin = 2 * time.Minute

// Provider caches tokens per scope and refreshes them shortly before they
// expire. Safe for concurrent use.
type Provider struct {
	cred credential
	now  func() time.Time

	mu    sync.Mutex
	cache map[string]azcore.AccessToken
}

// NewProvider builds a Provider on the default Azure credential chain.
func NewProvider() (*Provider, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azureauth: default credential: %w", err)
	}
	return newProvider(cred), nil
}

func newProvider(cred credential) *Provider {
	return &Provider{
		cred:  cred,
		now:   time.Now,
		cache: make(map[string]azcore.AccessToken),
	}
}

// Token returns a bearer token for the given scope, reusing a cached one
// while it remains comfortably valid.
func (p *Provider) Token(ctx context.Context, scope string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if tok, ok := p.cache[scope]; ok && p.now().Before(tok.ExpiresOn.Add(-refreshMargin)) {
		return tok.Token, nil
	}

	tok, err := p.cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{scope}})
	if err != nil {
		return "", fmt.Errorf("azureauth: get token for %s: %w", scope, err)
	}
	p.cache[scope] = tok
	return tok.Token, nil
}
