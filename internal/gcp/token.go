package gcp

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/Lllllllleong/queuedesk/internal/models"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/oauth2/jwt"
	"golang.org/x/sync/singleflight"
)

// DatastoreScope grants read/write access to Firestore and Datastore.
const DatastoreScope = "https://www.googleapis.com/auth/datastore"

// Credential is a parsed service account key.
type Credential struct {
	ProjectID   string
	ClientEmail string
	TokenURL    string
	Scopes      []string
	conf        *jwt.Config
}

// LoadCredential reads a service account JSON key from path.
func LoadCredential(path string, scopes ...string) (*Credential, error) {
	const op = "load_credential"
	if path == "" {
		return nil, NewError(KindAuth, op, "service account key path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, WrapError(KindAuth, op, "error reading service account key", err)
	}
	return ParseCredential(data, scopes...)
}

// ParseCredential parses service account key material. Without scopes the
// credential is scoped to DatastoreScope.
func ParseCredential(data []byte, scopes ...string) (*Credential, error) {
	const op = "parse_credential"
	if len(scopes) == 0 {
		scopes = []string{DatastoreScope}
	}

	conf, err := google.JWTConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, WrapError(KindAuth, op, "error parsing service account key", err)
	}

	var meta struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, WrapError(KindAuth, op, "error parsing service account key", err)
	}

	return &Credential{
		ProjectID:   meta.ProjectID,
		ClientEmail: conf.Email,
		TokenURL:    conf.TokenURL,
		Scopes:      conf.Scopes,
		conf:        conf,
	}, nil
}

// AcquireToken exchanges the credential for an access token with a signed JWT
// assertion. A nil client uses http.DefaultClient. It never retries.
func AcquireToken(ctx context.Context, cred *Credential, client *http.Client) (models.AccessToken, error) {
	const op = "acquire_token"
	if cred == nil || cred.conf == nil {
		return models.AccessToken{}, NewError(KindAuth, op, "no credential loaded")
	}
	if client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}

	tok, err := cred.conf.TokenSource(ctx).Token()
	if err != nil {
		return models.AccessToken{}, WrapError(KindAuth, op, "error fetching OAuth token", err)
	}
	if tok.AccessToken == "" {
		return models.AccessToken{}, NewError(KindAuth, op, "token endpoint returned an empty access token")
	}

	return models.AccessToken{Value: tok.AccessToken, Expiry: tok.Expiry}, nil
}

// TokenProvider hands out access tokens for one service account key. It is safe
// for concurrent use.
type TokenProvider struct {
	keyPath string
	scopes  []string
	client  *http.Client
	cache   bool
	skew    time.Duration
	now     func() time.Time

	credMu sync.Mutex
	cred   *Credential

	mu     sync.Mutex
	tokens map[string]models.AccessToken
	group  singleflight.Group
}

// TokenOption configures a TokenProvider.
type TokenOption func(*TokenProvider)

// WithScopes overrides the OAuth scopes requested for every token.
func WithScopes(scopes ...string) TokenOption {
	return func(p *TokenProvider) {
		if len(scopes) > 0 {
			p.scopes = scopes
		}
	}
}

// WithTokenHTTPClient sets the client used for the token exchange.
func WithTokenHTTPClient(c *http.Client) TokenOption {
	return func(p *TokenProvider) {
		if c != nil {
			p.client = c
		}
	}
}

// WithCache keeps tokens in memory until they come within the expiry skew.
func WithCache(enabled bool) TokenOption {
	return func(p *TokenProvider) { p.cache = enabled }
}

// WithExpirySkew sets how long before expiry a cached token is refreshed.
func WithExpirySkew(d time.Duration) TokenOption {
	return func(p *TokenProvider) {
		if d >= 0 {
			p.skew = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TokenOption {
	return func(p *TokenProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewTokenProvider creates a provider for the key at keyPath. The key is read on
// first use, so a missing file surfaces as an auth error from Token.
func NewTokenProvider(keyPath string, opts ...TokenOption) *TokenProvider {
	p := &TokenProvider{
		keyPath: keyPath,
		scopes:  []string{DatastoreScope},
		client:  &http.Client{Timeout: 10 * time.Second},
		skew:    time.Minute,
		now:     time.Now,
		tokens:  make(map[string]models.AccessToken),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Credential returns the loaded key, reading it on first call. A failed read is
// retried on the next call; a successful one is kept until restart.
func (p *TokenProvider) Credential() (*Credential, error) {
	p.credMu.Lock()
	defer p.credMu.Unlock()

	if p.cred != nil {
		return p.cred, nil
	}
	cred, err := LoadCredential(p.keyPath, p.scopes...)
	if err != nil {
		return nil, err
	}
	p.cred = cred
	return cred, nil
}

// Token returns an access token that is not expired at the moment of return.
// Concurrent callers share a single exchange; a caller whose ctx ends stops
// waiting for it.
func (p *TokenProvider) Token(ctx context.Context) (models.AccessToken, error) {
	const op = "acquire_token"
	key := strings.Join(p.scopes, " ")

	if tok, ok := p.cached(key); ok {
		return tok, nil
	}

	cred, err := p.Credential()
	if err != nil {
		return models.AccessToken{}, err
	}

	// The shared exchange must outlive any single caller.
	fetchCtx := context.WithoutCancel(ctx)
	ch := p.group.DoChan(key, func() (any, error) {
		tok, err := AcquireToken(fetchCtx, cred, p.client)
		if err != nil {
			return nil, err
		}
		if tok.ExpiredAt(p.now()) {
			return nil, NewError(KindAuth, op, "token endpoint returned an expired token")
		}
		if p.cache && !tok.Expiry.IsZero() {
			p.mu.Lock()
			p.tokens[key] = tok
			p.mu.Unlock()
		}
		return tok, nil
	})

	select {
	case <-ctx.Done():
		return models.AccessToken{}, WrapError(KindTransport, op, "token request abandoned", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return models.AccessToken{}, res.Err
		}
		return res.Val.(models.AccessToken), nil
	}
}

func (p *TokenProvider) cached(key string) (models.AccessToken, bool) {
	if !p.cache {
		return models.AccessToken{}, false
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	tok, ok := p.tokens[key]
	if !ok {
		return models.AccessToken{}, false
	}
	if tok.ExpiredAt(p.now().Add(p.skew)) {
		delete(p.tokens, key)
		return models.AccessToken{}, false
	}
	return tok, true
}

// TokenSource adapts the provider to oauth2.TokenSource for Google client libraries.
func (p *TokenProvider) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &providerSource{ctx: ctx, provider: p}
}

type providerSource struct {
	ctx      context.Context
	provider *TokenProvider
}

func (s *providerSource) Token() (*oauth2.Token, error) {
	tok, err := s.provider.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{AccessToken: tok.Value, TokenType: "Bearer", Expiry: tok.Expiry}, nil
}
