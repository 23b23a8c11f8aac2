package clients

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"vaeva/backend/services/reporter/internal/tokencache"
)

const (
	DefaultWallboxAuthURL = "https://user-api.wall-box.com"
	DefaultWallboxAPIURL  = "https://api.wall-box.com"

	defaultTokenLifetime = 15 * time.Minute
	maxErrorBody         = 512
)

var (
	// ErrUnauthorized is returned when Wallbox rejects the credentials or token.
	ErrUnauthorized = errors.New("wallbox: unauthorized")
	// ErrNotAuthenticated is returned when an API call precedes Authenticate.
	ErrNotAuthenticated = errors.New("wallbox: not authenticated")
)

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// TokenStore caches bearer tokens between runs.
type TokenStore interface {
	Get(ctx context.Context, key string) (*tokencache.Token, error)
	Save(ctx context.Context, key string, token tokencache.Token) error
	Delete(ctx context.Context, key string) error
}

// WallboxOptions configures the client.
type WallboxOptions struct {
	AuthURL string
	APIURL  string
	Timeout time.Duration
	HTTP    HTTPDoer
	Tokens  TokenStore
}

// WallboxSession is the attribute block of one entry in the sessions stats endpoint.
type WallboxSession struct {
	UserEmail   string     `json:"user_email"`
	UserRFID    FlexString `json:"user_rfid"`
	Start       float64    `json:"start"`
	Time        float64    `json:"time"`
	Energy      float64    `json:"energy"`
	GreenEnergy float64    `json:"green_energy"`
	Cost        float64    `json:"cost"`
}

// WallboxClient talks to the Wallbox cloud API for one account.
type WallboxClient struct {
	authURL  string
	apiURL   string
	login    string
	password string
	client   HTTPDoer
	breaker  *gobreaker.CircuitBreaker
	tokens   TokenStore
	logger   *zap.Logger

	token  string
	cached bool
}

// NewWallboxClient returns client wrapper for one account.
func NewWallboxClient(login, password string, opts WallboxOptions, logger *zap.Logger) *WallboxClient {
	if opts.AuthURL == "" {
		opts.AuthURL = DefaultWallboxAuthURL
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultWallboxAPIURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{Timeout: opts.Timeout}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "wallbox",
		MaxRequests: 1,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrUnauthorized)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &WallboxClient{
		authURL:  strings.TrimRight(opts.AuthURL, "/"),
		apiURL:   strings.TrimRight(opts.APIURL, "/"),
		login:    login,
		password: password,
		client:   opts.HTTP,
		breaker:  breaker,
		tokens:   opts.Tokens,
		logger:   logger,
	}
}

// Authenticate obtains a bearer token, reusing a cached one when available. A cached token the
// API later rejects is replaced by a fresh signin.
func (c *WallboxClient) Authenticate(ctx context.Context) error {
	if c.tokens != nil {
		cached, err := c.tokens.Get(ctx, c.cacheKey())
		switch {
		case err == nil:
			c.token, c.cached = cached.Value, true
			c.logger.Debug("using cached wallbox token", zap.Time("expires_at", cached.ExpiresAt))
			return nil
		case !errors.Is(err, tokencache.ErrMiss):
			c.logger.Warn("token cache lookup failed", zap.Error(err))
		}
	}
	return c.signin(ctx)
}

func (c *WallboxClient) signin(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.authURL+"/users/signin", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.login, c.password)
	req.Header.Set("Partner", "wallbox")

	var payload struct {
		JWT  string `json:"jwt"`
		Data struct {
			Attributes struct {
				Token string `json:"token"`
				TTL   int64  `json:"ttl"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := c.do(req, &payload); err != nil {
		return fmt.Errorf("wallbox: authenticate: %w", err)
	}

	token := payload.Data.Attributes.Token
	if token == "" {
		token = payload.JWT
	}
	if token == "" {
		return fmt.Errorf("wallbox: authenticate: %w: empty token", ErrUnauthorized)
	}
	c.token, c.cached = token, false

	if c.tokens != nil {
		expiresAt := tokenExpiry(token, payload.Data.Attributes.TTL, time.Now())
		if err := c.tokens.Save(ctx, c.cacheKey(), tokencache.Token{Vendor: "wallbox", Value: token, ExpiresAt: expiresAt}); err != nil {
			c.logger.Warn("failed to cache wallbox token", zap.Error(err))
		}
	}
	return nil
}

// ListChargers returns the ids of every charger visible to the account.
func (c *WallboxClient) ListChargers(ctx context.Context) ([]string, error) {
	var payload struct {
		Result struct {
			Groups []struct {
				ChargerData []struct {
					ID FlexString `json:"id"`
				} `json:"charger_data"`
			} `json:"groups"`
		} `json:"result"`
	}
	if err := c.get(ctx, "/v3/chargers/groups", nil, &payload); err != nil {
		return nil, fmt.Errorf("wallbox: list chargers: %w", err)
	}

	var ids []string
	for _, g := range payload.Result.Groups {
		for _, ch := range g.ChargerData {
			ids = append(ids, string(ch.ID))
		}
	}
	return ids, nil
}

// ListSessions returns the sessions of a charger started within [begin, end].
func (c *WallboxClient) ListSessions(ctx context.Context, chargerID string, begin, end time.Time) ([]WallboxSession, error) {
	query := url.Values{}
	query.Set("charger", chargerID)
	query.Set("start_date", strconv.FormatInt(begin.Unix(), 10))
	query.Set("end_date", strconv.FormatInt(end.Unix(), 10))

	var payload struct {
		Data []struct {
			Attributes WallboxSession `json:"attributes"`
		} `json:"data"`
	}
	if err := c.get(ctx, "/v4/sessions/stats", query, &payload); err != nil {
		return nil, fmt.Errorf("wallbox: list sessions for charger %s: %w", chargerID, err)
	}

	sessions := make([]WallboxSession, 0, len(payload.Data))
	for _, d := range payload.Data {
		sessions = append(sessions, d.Attributes)
	}
	return sessions, nil
}

func (c *WallboxClient) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	if c.token == "" {
		return ErrNotAuthenticated
	}
	target := c.apiURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	err := c.authorized(ctx, target, out)
	if !errors.Is(err, ErrUnauthorized) {
		return err
	}
	c.evict(ctx)
	if !c.cached {
		return err
	}

	c.logger.Info("cached wallbox token rejected, signing in again")
	if err := c.signin(ctx); err != nil {
		return err
	}
	err = c.authorized(ctx, target, out)
	if errors.Is(err, ErrUnauthorized) {
		c.evict(ctx)
	}
	return err
}

func (c *WallboxClient) authorized(ctx context.Context, target string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return c.do(req, out)
}

func (c *WallboxClient) evict(ctx context.Context) {
	if c.tokens == nil {
		return
	}
	if err := c.tokens.Delete(ctx, c.cacheKey()); err != nil {
		c.logger.Warn("failed to evict wallbox token", zap.Error(err))
	}
}

func (c *WallboxClient) cacheKey() string {
	return tokencache.Key("wallbox", c.login)
}

func (c *WallboxClient) do(req *http.Request, out interface{}) error {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")

	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			return nil, ErrUnauthorized
		}
		if resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.Warn("wallbox request blocked by circuit breaker", zap.String("url", req.URL.Path))
	}
	return err
}

// tokenExpiry prefers the ttl returned by signin (epoch ms), then the token's exp claim.
func tokenExpiry(token string, ttlMillis int64, now time.Time) time.Time {
	if ttlMillis > 0 {
		return time.UnixMilli(ttlMillis)
	}
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err == nil && claims.ExpiresAt != nil {
		return claims.ExpiresAt.Time
	}
	return now.Add(defaultTokenLifetime)
}

// FlexString accepts JSON strings, numbers and null.
type FlexString string

// UnmarshalJSON implements json.Unmarshaler.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*f = ""
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*f = FlexString(n.String())
	}
	return nil
}
