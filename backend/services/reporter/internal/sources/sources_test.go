package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"vaeva/backend/services/reporter/internal/clients"
	"vaeva/backend/services/reporter/internal/config"
	"vaeva/backend/services/reporter/internal/models"
)

type fakeWallbox struct {
	authErr  error
	chargers []string
	sessions map[string][]clients.WallboxSession
	calls    []string
}

func (f *fakeWallbox) Authenticate(context.Context) error {
	f.calls = append(f.calls, "auth")
	return f.authErr
}

func (f *fakeWallbox) ListChargers(context.Context) ([]string, error) {
	f.calls = append(f.calls, "chargers")
	return f.chargers, nil
}

func (f *fakeWallbox) ListSessions(_ context.Context, charger string, _, _ time.Time) ([]clients.WallboxSession, error) {
	f.calls = append(f.calls, "sessions:"+charger)
	return f.sessions[charger], nil
}

func TestWallboxSourceMapsSessions(t *testing.T) {
	api := &fakeWallbox{
		chargers: []string{"c1", "c2"},
		sessions: map[string][]clients.WallboxSession{
			"c1": {{UserEmail: "a@x.com", Start: 1700000000.5, Time: 3599.6, Energy: 10, GreenEnergy: 4, Cost: 2.5}},
			"c2": {{UserRFID: "B-1", Start: 1700003600, Time: 60, Energy: 1}},
		},
	}
	src := NewWallboxSource(api, zap.NewNop())

	raw, err := src.FetchSessions(context.Background(), time.Unix(0, 0), time.Unix(1800000000, 0))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("expected 2 raw sessions, got %d", len(raw))
	}
	first := raw[0]
	if first.ChargerID != "c1" || first.Email != "a@x.com" || first.DurationSec != 3599.6 {
		t.Fatalf("unexpected first record %+v", first)
	}
	if first.Start.UnixMilli() != 1700000000500 {
		t.Fatalf("unexpected start %s", first.Start)
	}
	if first.EnergyTotal != 10 || first.EnergyGreen != 4 || first.Cost != 2.5 {
		t.Fatalf("unexpected energy fields %+v", first)
	}
	if raw[1].Badge != "B-1" || raw[1].ChargerID != "c2" {
		t.Fatalf("unexpected second record %+v", raw[1])
	}
	wantCalls := []string{"auth", "chargers", "sessions:c1", "sessions:c2"}
	for i, c := range wantCalls {
		if api.calls[i] != c {
			t.Fatalf("call %d: expected %s, got %s", i, c, api.calls[i])
		}
	}
}

func TestWallboxSourcePropagatesAuthFailure(t *testing.T) {
	authErr := errors.New("boom")
	src := NewWallboxSource(&fakeWallbox{authErr: authErr}, zap.NewNop())
	if _, err := src.FetchSessions(context.Background(), time.Now(), time.Now()); !errors.Is(err, authErr) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestFactoryForSite(t *testing.T) {
	api := &fakeWallbox{}
	f := NewFactory(func(models.Site) WallboxAPI { return api }, zap.NewNop())

	src, err := f.ForSite(models.Site{ID: "home", Type: models.VendorWallbox})
	if err != nil {
		t.Fatalf("wallbox: %v", err)
	}
	if _, ok := src.(*WallboxSource); !ok {
		t.Fatalf("expected WallboxSource, got %T", src)
	}

	src, err = f.ForSite(models.Site{ID: "office", Type: models.VendorEasee})
	if err != nil {
		t.Fatalf("easee: %v", err)
	}
	raw, err := src.FetchSessions(context.Background(), time.Now(), time.Now())
	if err != nil || len(raw) != 0 {
		t.Fatalf("expected empty easee fetch, got %v %v", raw, err)
	}

	_, err = f.ForSite(models.Site{ID: "garage", Type: "tesla"})
	if !errors.Is(err, ErrUnknownVendor) || !errors.Is(err, config.ErrConfig) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
