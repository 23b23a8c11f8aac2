package clients

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"vaeva/backend/services/reporter/internal/tokencache"
)

type memoryTokens struct {
	saved   map[string]tokencache.Token
	deleted []string
}

func (m *memoryTokens) Get(_ context.Context, key string) (*tokencache.Token, error) {
	tok, ok := m.saved[key]
	if !ok {
		return nil, tokencache.ErrMiss
	}
	return &tok, nil
}

func (m *memoryTokens) Save(_ context.Context, key string, token tokencache.Token) error {
	if m.saved == nil {
		m.saved = map[string]tokencache.Token{}
	}
	m.saved[key] = token
	return nil
}

func (m *memoryTokens) Delete(_ context.Context, key string) error {
	delete(m.saved, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)})
	s, err := tok.SignedString([]byte("test"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func newWallboxServer(t *testing.T, token string) (*httptest.Server, *int) {
	t.Helper()
	signins := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/users/signin", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "me@example.com" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Header.Get("Partner") != "wallbox" {
			t.Errorf("missing partner header")
		}
		signins++
		json.NewEncoder(w).Encode(map[string]any{"jwt": token})
	})
	mux.HandleFunc("/v3/chargers/groups", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"result":{"groups":[{"charger_data":[{"id":1001},{"id":"1002"}]},{"charger_data":[{"id":2001}]}]}}`))
	})
	mux.HandleFunc("/v4/sessions/stats", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		q := r.URL.Query()
		if q.Get("charger") != "1001" || q.Get("start_date") != "1709251200" || q.Get("end_date") != "1711929599" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"data":[
			{"attributes":{"user_email":"a@x.com","user_rfid":null,"start":1709290000,"time":3600,"energy":10.0,"green_energy":4.0,"cost":2.5}},
			{"attributes":{"user_email":"","user_rfid":4242,"start":1709300000,"time":1800,"energy":3.5,"green_energy":0,"cost":0.9}}
		]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &signins
}

func TestWallboxClientFlow(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))
	srv, _ := newWallboxServer(t, token)
	tokens := &memoryTokens{}

	c := NewWallboxClient("me@example.com", "secret", WallboxOptions{AuthURL: srv.URL, APIURL: srv.URL, Tokens: tokens}, zap.NewNop())
	ctx := context.Background()

	if err := c.Authenticate(ctx); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	cached, ok := tokens.saved[tokencache.Key("wallbox", "me@example.com")]
	if !ok || cached.Value != token {
		t.Fatalf("token not cached: %+v", tokens.saved)
	}
	if time.Until(cached.ExpiresAt) < 50*time.Minute {
		t.Fatalf("expected expiry from exp claim, got %s", cached.ExpiresAt)
	}

	chargers, err := c.ListChargers(ctx)
	if err != nil {
		t.Fatalf("list chargers: %v", err)
	}
	if len(chargers) != 3 || chargers[0] != "1001" || chargers[1] != "1002" || chargers[2] != "2001" {
		t.Fatalf("unexpected chargers %v", chargers)
	}

	begin := time.Unix(1709251200, 0)
	end := time.Unix(1711929599, 0)
	sessions, err := c.ListSessions(ctx, "1001", begin, end)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].UserEmail != "a@x.com" || sessions[0].UserRFID != "" || sessions[0].Energy != 10.0 || sessions[0].GreenEnergy != 4.0 {
		t.Fatalf("unexpected first session %+v", sessions[0])
	}
	if sessions[1].UserRFID != "4242" || sessions[1].Time != 1800 {
		t.Fatalf("unexpected second session %+v", sessions[1])
	}
}

func TestWallboxClientUsesCachedToken(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))
	srv, signins := newWallboxServer(t, token)
	tokens := &memoryTokens{saved: map[string]tokencache.Token{
		tokencache.Key("wallbox", "me@example.com"): {Vendor: "wallbox", Value: token, ExpiresAt: time.Now().Add(time.Hour)},
	}}

	c := NewWallboxClient("me@example.com", "secret", WallboxOptions{AuthURL: srv.URL, APIURL: srv.URL, Tokens: tokens}, zap.NewNop())
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if *signins != 0 {
		t.Fatalf("expected no signin call, got %d", *signins)
	}
	if _, err := c.ListChargers(context.Background()); err != nil {
		t.Fatalf("list chargers: %v", err)
	}
}

func TestWallboxClientReplacesRejectedCachedToken(t *testing.T) {
	token := signedToken(t, time.Now().Add(time.Hour))
	srv, signins := newWallboxServer(t, token)
	key := tokencache.Key("wallbox", "me@example.com")
	tokens := &memoryTokens{saved: map[string]tokencache.Token{
		key: {Vendor: "wallbox", Value: "revoked", ExpiresAt: time.Now().Add(time.Hour)},
	}}

	c := NewWallboxClient("me@example.com", "secret", WallboxOptions{AuthURL: srv.URL, APIURL: srv.URL, Tokens: tokens}, zap.NewNop())
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	chargers, err := c.ListChargers(context.Background())
	if err != nil {
		t.Fatalf("list chargers after stale token: %v", err)
	}
	if len(chargers) != 3 {
		t.Fatalf("unexpected chargers %v", chargers)
	}
	if *signins != 1 {
		t.Fatalf("expected one fresh signin, got %d", *signins)
	}
	if len(tokens.deleted) != 1 || tokens.deleted[0] != key {
		t.Fatalf("expected stale token eviction, got %v", tokens.deleted)
	}
	if tokens.saved[key].Value != token {
		t.Fatalf("expected fresh token cached, got %+v", tokens.saved[key])
	}
}

func TestWallboxClientFreshTokenRejectedAborts(t *testing.T) {
	signins := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/users/signin", func(w http.ResponseWriter, r *http.Request) {
		signins++
		w.Write([]byte(`{"jwt":"fresh"}`))
	})
	mux.HandleFunc("/v3/chargers/groups", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	key := tokencache.Key("wallbox", "me@example.com")
	tokens := &memoryTokens{saved: map[string]tokencache.Token{
		key: {Vendor: "wallbox", Value: "revoked", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	c := NewWallboxClient("me@example.com", "secret", WallboxOptions{AuthURL: srv.URL, APIURL: srv.URL, Tokens: tokens}, zap.NewNop())
	if err := c.Authenticate(context.Background()); err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if _, err := c.ListChargers(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if signins != 1 {
		t.Fatalf("expected a single retry signin, got %d", signins)
	}
	if _, ok := tokens.saved[key]; ok {
		t.Fatalf("rejected token must not stay cached")
	}
}

func TestWallboxClientBadCredentials(t *testing.T) {
	srv, _ := newWallboxServer(t, "unused")
	c := NewWallboxClient("me@example.com", "wrong", WallboxOptions{AuthURL: srv.URL, APIURL: srv.URL}, zap.NewNop())
	if err := c.Authenticate(context.Background()); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if _, err := c.ListChargers(context.Background()); !errors.Is(err, ErrNotAuthenticated) {
		t.Fatalf("expected ErrNotAuthenticated, got %v", err)
	}
}

func TestTokenExpiryPrefersTTL(t *testing.T) {
	now := time.Unix(1700000000, 0)
	if got := tokenExpiry("not-a-jwt", 1700000600000, now); !got.Equal(time.Unix(1700000600, 0)) {
		t.Fatalf("expected ttl expiry, got %s", got)
	}
	if got := tokenExpiry("not-a-jwt", 0, now); !got.Equal(now.Add(defaultTokenLifetime)) {
		t.Fatalf("expected default expiry, got %s", got)
	}
}
