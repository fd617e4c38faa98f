package gcp

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var (
	testKeyOnce sync.Once
	testKeyPEM  []byte
)

func privateKeyPEM(t *testing.T) []byte {
	t.Helper()
	testKeyOnce.Do(func() {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			t.Fatalf("failed to generate key: %v", err)
		}
		der, err := x509.MarshalPKCS8PrivateKey(key)
		if err != nil {
			t.Fatalf("failed to marshal key: %v", err)
		}
		testKeyPEM = pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	})
	return testKeyPEM
}

// writeServiceAccount writes a service account key whose token_uri is tokenURL.
func writeServiceAccount(t *testing.T, tokenURL string) string {
	t.Helper()
	key := map[string]string{
		"type":           "service_account",
		"project_id":     "queue-test",
		"private_key_id": "key-1",
		"private_key":    string(privateKeyPEM(t)),
		"client_email":   "desk@queue-test.iam.gserviceaccount.com",
		"client_id":      "1234",
		"token_uri":      tokenURL,
	}
	data, err := json.Marshal(key)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "serviceAccountKey.json")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	return path
}

// tokenServer answers JWT bearer exchanges with the given body and status.
type tokenServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newTokenServer(t *testing.T, status int, body func(n int32) map[string]any) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := ts.hits.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("assertion") == "" {
			http.Error(w, `{"error":"invalid_request"}`, http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body(n))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func okToken(n int32) map[string]any {
	return map[string]any{
		"access_token": "token-" + string(rune('0'+n)),
		"token_type":   "Bearer",
		"expires_in":   3600,
	}
}

func TestLoadCredential(t *testing.T) {
	path := writeServiceAccount(t, "https://oauth2.example.com/token")

	cred, err := LoadCredential(path)
	if err != nil {
		t.Fatalf("LoadCredential: %v", err)
	}
	if cred.ProjectID != "queue-test" {
		t.Errorf("expected project queue-test, got %q", cred.ProjectID)
	}
	if cred.TokenURL != "https://oauth2.example.com/token" {
		t.Errorf("unexpected token url %q", cred.TokenURL)
	}
	if len(cred.Scopes) != 1 || cred.Scopes[0] != DatastoreScope {
		t.Errorf("expected datastore scope, got %v", cred.Scopes)
	}
}

func TestLoadCredential_Errors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.json")
	if err := os.WriteFile(garbage, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	user := filepath.Join(dir, "user.json")
	if err := os.WriteFile(user, []byte(`{"type":"authorized_user"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"missing file", filepath.Join(dir, "missing.json")},
		{"unparseable file", garbage},
		{"not a service account", user},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadCredential(tt.path)
			if !IsKind(err, KindAuth) {
				t.Errorf("expected auth error, got %v", err)
			}
		})
	}
}

func TestTokenProvider_Token(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, okToken)
	p := NewTokenProvider(writeServiceAccount(t, ts.URL))

	tok, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.Value != "token-1" {
		t.Errorf("expected token-1, got %q", tok.Value)
	}
	if tok.Expiry.IsZero() || !tok.Expiry.After(time.Now()) {
		t.Errorf("expected a future expiry, got %v", tok.Expiry)
	}
}

func TestTokenProvider_NoCacheFetchesEveryTime(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, okToken)
	p := NewTokenProvider(writeServiceAccount(t, ts.URL), WithCache(false))

	for i := 0; i < 3; i++ {
		if _, err := p.Token(context.Background()); err != nil {
			t.Fatalf("Token: %v", err)
		}
	}
	if got := ts.hits.Load(); got != 3 {
		t.Errorf("expected 3 exchanges, got %d", got)
	}
}

func TestTokenProvider_CacheReusesUntilSkew(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, okToken)
	now := time.Now()
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	p := NewTokenProvider(writeServiceAccount(t, ts.URL),
		WithCache(true), WithExpirySkew(time.Minute), WithClock(clock))

	first, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	second, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if first.Value != second.Value || ts.hits.Load() != 1 {
		t.Fatalf("expected cached token, got %q then %q after %d exchanges", first.Value, second.Value, ts.hits.Load())
	}

	// Inside the skew window the cached token must not be handed out.
	mu.Lock()
	now = first.Expiry.Add(-30 * time.Second)
	mu.Unlock()

	third, err := p.Token(context.Background())
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if third.Value == first.Value || ts.hits.Load() != 2 {
		t.Errorf("expected a refreshed token, got %q after %d exchanges", third.Value, ts.hits.Load())
	}
}

func TestTokenProvider_RejectsExpiredIssue(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, okToken)
	future := func() time.Time { return time.Now().Add(48 * time.Hour) }
	p := NewTokenProvider(writeServiceAccount(t, ts.URL), WithClock(future))

	_, err := p.Token(context.Background())
	if !IsKind(err, KindAuth) {
		t.Errorf("expected auth error for an expired token, got %v", err)
	}
}

func TestTokenProvider_ExchangeFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   func(int32) map[string]any
	}{
		{
			name:   "rejected",
			status: http.StatusBadRequest,
			body:   func(int32) map[string]any { return map[string]any{"error": "invalid_grant"} },
		},
		{
			name:   "empty token",
			status: http.StatusOK,
			body:   func(int32) map[string]any { return map[string]any{"access_token": "", "expires_in": 3600} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTokenServer(t, tt.status, tt.body)
			p := NewTokenProvider(writeServiceAccount(t, ts.URL))

			_, err := p.Token(context.Background())
			if !IsKind(err, KindAuth) {
				t.Errorf("expected auth error, got %v", err)
			}
		})
	}
}

func TestTokenProvider_MissingKeyRetriedLater(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, okToken)
	src := writeServiceAccount(t, ts.URL)
	path := filepath.Join(t.TempDir(), "late.json")
	p := NewTokenProvider(path)

	if _, err := p.Token(context.Background()); !IsKind(err, KindAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if ts.hits.Load() != 0 {
		t.Fatalf("no exchange expected without a key, got %d", ts.hits.Load())
	}

	data, err := os.ReadFile(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := p.Token(context.Background()); err != nil {
		t.Errorf("expected success once the key exists, got %v", err)
	}
}

func TestTokenProvider_ConcurrentCallersShareExchange(t *testing.T) {
	release := make(chan struct{})
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(okToken(1))
	}))
	t.Cleanup(srv.Close)

	p := NewTokenProvider(writeServiceAccount(t, srv.URL), WithCache(true))
	// Load the key up front so every goroutine reaches the exchange.
	if _, err := p.Credential(); err != nil {
		t.Fatal(err)
	}

	const callers = 8
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Token(context.Background())
			errs <- err
		}()
	}

	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("Token: %v", err)
		}
	}
	if got := hits.Load(); got != 1 {
		t.Errorf("expected one shared exchange, got %d", got)
	}
}

func TestTokenProvider_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(okToken(1))
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	p := NewTokenProvider(writeServiceAccount(t, srv.URL))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Token(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected the caller to stop waiting, got %v", err)
	}
}

func TestTokenProvider_TokenSource(t *testing.T) {
	ts := newTokenServer(t, http.StatusOK, okToken)
	p := NewTokenProvider(writeServiceAccount(t, ts.URL))

	tok, err := p.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.AccessToken != "token-1" || tok.TokenType != "Bearer" {
		t.Errorf("unexpected oauth2 token %+v", tok)
	}
}
