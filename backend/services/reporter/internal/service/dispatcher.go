package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"vaeva/backend/libs/metrics"
	"vaeva/backend/services/reporter/internal/models"
	"vaeva/backend/services/reporter/internal/sources"
)

// SourceFactory selects a session source for a site.
type SourceFactory interface {
	ForSite(site models.Site) (sources.SessionSource, error)
}

// Dispatcher fetches every site and normalizes the results into one sorted collection.
type Dispatcher struct {
	factory     SourceFactory
	normalizer  *Normalizer
	concurrency int
	metrics     *metrics.RunMetrics
	logger      *zap.Logger
}

// NewDispatcher builds dispatcher. concurrency below 1 fetches sites one after another.
func NewDispatcher(factory SourceFactory, normalizer *Normalizer, concurrency int, m *metrics.RunMetrics, logger *zap.Logger) *Dispatcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Dispatcher{
		factory:     factory,
		normalizer:  normalizer,
		concurrency: concurrency,
		metrics:     m,
		logger:      logger,
	}
}

// Collect fetches sessions of sites started within [begin, end]. Every source is resolved before
// any fetch so a misconfigured vendor fails fast. The first fetch error cancels the others.
func (d *Dispatcher) Collect(ctx context.Context, sites []models.Site, begin, end time.Time) ([]models.Session, error) {
	srcs := make([]sources.SessionSource, len(sites))
	for i, site := range sites {
		src, err := d.factory.ForSite(site)
		if err != nil {
			return nil, err
		}
		srcs[i] = src
	}

	// one slot per site keeps the merge order independent of scheduling
	slots := make([][]models.Session, len(sites))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i, site := range sites {
		g.Go(func() error {
			d.logger.Info("fetching data from site", zap.String("site", site.ID), zap.String("name", site.Name))
			raw, err := srcs[i].FetchSessions(gctx, begin, end)
			if err != nil {
				return fmt.Errorf("site %q: %w", site.ID, err)
			}
			d.metrics.SessionsFetched.WithLabelValues(site.ID).Add(float64(len(raw)))
			slots[i] = d.normalizeAll(site.ID, raw)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []models.Session
	for _, s := range slots {
		all = append(all, s...)
	}
	SortSessions(all)

	d.metrics.SessionsCollected.Add(float64(len(all)))
	for _, s := range all {
		// counters only grow; correction records with negative energy stay in the reports
		if s.QuantityTotal > 0 {
			d.metrics.EnergyKWh.Add(s.QuantityTotal)
		}
	}
	return all, nil
}

func (d *Dispatcher) normalizeAll(siteID string, raw []models.RawSession) []models.Session {
	out := make([]models.Session, 0, len(raw))
	for _, r := range raw {
		session, err := d.normalizer.Normalize(siteID, r)
		switch {
		case err == nil:
			out = append(out, session)
		case errors.Is(err, ErrUnresolvedUser):
			d.metrics.SessionsDropped.WithLabelValues("unresolved").Inc()
			d.logger.Debug("session dropped, no matching user",
				zap.String("site", siteID),
				zap.String("charger", r.ChargerID),
				zap.Time("start", r.Start),
			)
		case errors.Is(err, ErrZeroDuration):
			d.metrics.SessionsDropped.WithLabelValues("zero_duration").Inc()
			d.logger.Warn("session skipped", zap.Error(err),
				zap.String("site", siteID),
				zap.String("charger", r.ChargerID),
				zap.Time("start", r.Start),
			)
		default:
			d.metrics.SessionsDropped.WithLabelValues("invalid").Inc()
			d.logger.Warn("session skipped", zap.Error(err), zap.String("site", siteID))
		}
	}
	return out
}
