package azureauth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

type fakeCredential struct {
	calls int
	err   error
	ttl   time.Duration
	base  time.Time
}

func (f *fakeCredential) GetToken(_ context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
	f.calls++
	if f.err != nil {
		return azcore.AccessToken{}, f.err
	}
	return azcore.AccessToken{
		Token:     options.Scopes[0] + "-token",
		ExpiresOn: f.base.Add(f.ttl),
	}, nil
}

func TestTokenCachedUntilNearExpiry(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cred := &fakeCredential{ttl: time.Hour, base: base}
	p := newProvider(cred)
	now := base
	p.now = func() time.Time { return now }

	for range 3 {
		tok, err := p.Token(context.Background(), "scope-a")
		if err != nil {
			t.Fatalf("Token: %v", err)
		}
		if tok != "scope-a-token" {
			t.Fatalf("token = %q", tok)
		}
	}
	if cred.calls != 1 {
		t.Fatalf("credential calls = %d, want 1", cred.calls)
	}

	// Within the refresh margin the token is re-acquired.
	now = base.Add(time.Hour - time.Minute)
	if _, err := p.Token(context.Background(), "scope-a"); err != nil {
		t.Fatalf("Token: %v", err)
	}
	if cred.calls != 2 {
		t.Fatalf("credential calls = %d, want 2", cred.calls)
	}
}

func TestTokenScopesCachedIndependently(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cred := &fakeCredential{ttl: time.Hour, base: base}
	p := newProvider(cred)
	p.now = func() time.Time { return base }

	a, _ := p.Token(context.Background(), "scope-a")
	b, _ := p.Token(context.Background(), "scope-b")
	if a == b {
		t.Fatalf("scopes share a token: %q", a)
	}
	if cred.calls != 2 {
		t.Fatalf("credential calls = %d, want 2", cred.calls)
	}
}

func TestTokenError(t *testing.T) {
	wantErr := errors.New("denied")
	p := newProvider(&fakeCredential{err: wantErr})

	if _, err := p.Token(context.Background(), "scope-a"); !errors.Is(err, wantErr) {
		t.Fatalf("Token error = %v, want wrapped %v", err, wantErr)
	}
}
