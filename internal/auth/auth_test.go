package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

// newTokenServer serves client-credentials token requests and counts them.
func newTokenServer(t *testing.T, accessToken string) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil || r.PostForm.Get("grant_type") != "client_credentials" {
			http.Error(w, "bad grant", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"` + accessToken + `","token_type":"Bearer","expires_in":3600}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestNew_MissingCredentials(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		secret string
	}{
		{"both missing", "", ""},
		{"id missing", "", "secret"},
		{"secret missing", "id", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.id, tt.secret, nil)
			if !errors.Is(err, ErrMissingCredentials) {
				t.Errorf("New() error = %v, want ErrMissingCredentials", err)
			}
		})
	}
}

func TestTokenSource_FetchesAndCaches(t *testing.T) {
	srv, calls := newTokenServer(t, "fresh-token")
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))

	a, err := New("id", "secret", cache, WithTokenURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	token, err := a.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token.AccessToken != "fresh-token" {
		t.Errorf("AccessToken = %q, want %q", token.AccessToken, "fresh-token")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}

	saved, err := cache.Lookup("id")
	if err != nil || saved == nil {
		t.Fatalf("cache.Lookup() = %v, %v; want saved token", saved, err)
	}
	if saved.AccessToken != "fresh-token" {
		t.Errorf("cached AccessToken = %q, want %q", saved.AccessToken, "fresh-token")
	}
}

func TestTokenSource_ReusesValidCachedToken(t *testing.T) {
	srv, calls := newTokenServer(t, "fresh-token")
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
	if err := cache.Store("id", &oauth2.Token{
		AccessToken: "cached-token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	a, err := New("id", "secret", cache, WithTokenURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	token, err := a.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token.AccessToken != "cached-token" {
		t.Errorf("AccessToken = %q, want cached token", token.AccessToken)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("token requests = %d, want 0", got)
	}
}

func TestTokenSource_RefreshesExpiredCachedToken(t *testing.T) {
	srv, calls := newTokenServer(t, "fresh-token")
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
	if err := cache.Store("id", &oauth2.Token{
		AccessToken: "stale-token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(-time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	a, err := New("id", "secret", cache, WithTokenURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	token, err := a.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token.AccessToken != "fresh-token" {
		t.Errorf("AccessToken = %q, want %q", token.AccessToken, "fresh-token")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
}

func TestClient_UsesBaseURL(t *testing.T) {
	tokenSrv, _ := newTokenServer(t, "api-token")
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/artists/art1" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"art1","name":"Radiohead"}`))
	}))
	t.Cleanup(apiSrv.Close)

	a, err := New("id", "secret", nil, WithTokenURL(tokenSrv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	artist, err := a.Client(context.Background(), spotify.WithBaseURL(apiSrv.URL+"/v1/")).GetArtist(context.Background(), "art1")
	if err != nil {
		t.Fatalf("GetArtist() error = %v", err)
	}
	if artist.Name != "Radiohead" {
		t.Errorf("Name = %q, want %q", artist.Name, "Radiohead")
	}
}

func TestHTTPClient_SendsBearerToken(t *testing.T) {
	tokenSrv, _ := newTokenServer(t, "api-token")

	var gotAuth string
	apiSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"art1","name":"Radiohead"}`))
	}))
	t.Cleanup(apiSrv.Close)

	a, err := New("id", "secret", nil, WithTokenURL(tokenSrv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	resp, err := a.HTTPClient(context.Background()).Get(apiSrv.URL + "/artists/art1")
	if err != nil {
		t.Fatalf("request error = %v", err)
	}
	resp.Body.Close()

	if gotAuth != "Bearer api-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer api-token")
	}
}

func TestTokenSource_ClearsCorruptCache(t *testing.T) {
	srv, calls := newTokenServer(t, "fresh-token")
	path := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o600); err != nil {
		t.Fatal(err)
	}
	cache := NewTokenCache(path)

	a, err := New("id", "secret", cache, WithTokenURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	token, err := a.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token.AccessToken != "fresh-token" {
		t.Errorf("AccessToken = %q, want %q", token.AccessToken, "fresh-token")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}

	// the fresh token replaced the garbage
	saved, err := cache.Lookup("id")
	if err != nil || saved == nil || saved.AccessToken != "fresh-token" {
		t.Errorf("cache.Lookup() = %v, %v; want fresh token", saved, err)
	}
}

func TestTokenSource_IgnoresOtherClientsToken(t *testing.T) {
	srv, calls := newTokenServer(t, "fresh-token")
	cache := NewTokenCache(filepath.Join(t.TempDir(), "token.json"))
	if err := cache.Store("old-app", &oauth2.Token{
		AccessToken: "old-app-token",
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(time.Hour),
	}); err != nil {
		t.Fatal(err)
	}

	a, err := New("id", "secret", cache, WithTokenURL(srv.URL))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	token, err := a.TokenSource(context.Background()).Token()
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if token.AccessToken != "fresh-token" {
		t.Errorf("AccessToken = %q, want %q", token.AccessToken, "fresh-token")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("token requests = %d, want 1", got)
	}
}
