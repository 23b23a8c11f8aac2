package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"vaeva/backend/libs/db"
	"vaeva/backend/libs/metrics"
	"vaeva/backend/libs/redis"
	"vaeva/backend/services/reporter/internal/clients"
	appconfig "vaeva/backend/services/reporter/internal/config"
	"vaeva/backend/services/reporter/internal/daterange"
	"vaeva/backend/services/reporter/internal/identity"
	"vaeva/backend/services/reporter/internal/models"
	"vaeva/backend/services/reporter/internal/render"
	"vaeva/backend/services/reporter/internal/repository"
	"vaeva/backend/services/reporter/internal/service"
	"vaeva/backend/services/reporter/internal/sources"
	"vaeva/backend/services/reporter/internal/tokencache"
)

// RunRequest narrows one report run.
type RunRequest struct {
	Range  daterange.Range
	Site   string
	User   string
	Output string
}

// Option customizes the application graph.
type Option func(*App)

// WithSourceFactory replaces vendor sources, e.g. with fixtures.
func WithSourceFactory(f service.SourceFactory) Option {
	return func(a *App) { a.sources = f }
}

// WithRenderer replaces the template/file renderer.
func WithRenderer(r service.Renderer) Option {
	return func(a *App) { a.renderer = r }
}

// WithPDFConverter replaces the external PDF command.
func WithPDFConverter(c render.PDFConverter) Option {
	return func(a *App) { a.pdf = c }
}

// WithNow overrides the clock used for meta.today.
func WithNow(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

// App wires dependencies for one report invocation.
type App struct {
	cfg     *appconfig.Config
	logger  *zap.Logger
	metrics *metrics.RunMetrics

	sources  service.SourceFactory
	renderer service.Renderer
	pdf      render.PDFConverter
	now      func() time.Time

	redis     *goredis.Client
	db        *sql.DB
	directory *repository.UserRepository
}

// New builds application graph. The token cache is optional and a redis outage only disables
// it; a configured user directory must be reachable.
func New(ctx context.Context, cfg *appconfig.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.NewRunMetrics("vaeva"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.Directory.DSN != "" {
		sqlDB, err := db.NewPostgresDB(ctx, cfg.Directory.DSN)
		if err != nil {
			return nil, fmt.Errorf("user directory: %w", err)
		}
		a.db = sqlDB
		a.directory = repository.NewUserRepository(sqlDB, cfg.Directory.Query)
	}

	if a.sources == nil {
		var tokens clients.TokenStore
		if cfg.Redis.Addr != "" {
			client, err := redis.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
			if err != nil {
				logger.Warn("token cache unavailable, continuing without it", zap.Error(err))
			} else {
				a.redis = client
				tokens = tokencache.NewStore(client)
			}
		}
		a.sources = sources.NewFactory(a.wallboxFactory(tokens), logger)
	}

	if a.renderer == nil {
		if a.pdf == nil {
			a.pdf = render.NewCommandConverter(cfg.PDF.Command)
		}
		a.renderer = render.NewService(render.NewEngine(cfg.Templates.Dir), a.pdf, cfg.PDF.Stylesheet, logger)
	}

	return a, nil
}

func (a *App) wallboxFactory(tokens clients.TokenStore) sources.WallboxAPIFactory {
	return func(site models.Site) sources.WallboxAPI {
		opts := clients.WallboxOptions{
			AuthURL: a.cfg.Wallbox.AuthURL,
			APIURL:  a.cfg.Wallbox.APIURL,
			Timeout: a.cfg.WallboxTimeout(),
			Tokens:  tokens,
		}
		return clients.NewWallboxClient(site.Login, site.Password, opts, a.logger.With(zap.String("site", site.ID)))
	}
}

// Metrics exposes run counters.
func (a *App) Metrics() *metrics.RunMetrics {
	return a.metrics
}

// Run fetches sessions of the requested range and renders every selected output.
func (a *App) Run(ctx context.Context, req RunRequest) error {
	logger := a.logger.With(zap.String("run_id", uuid.NewString()))

	users, err := a.users(ctx)
	if err != nil {
		return err
	}
	sites, err := selectSites(a.cfg.SiteList(), req.Site)
	if err != nil {
		return err
	}
	outputs, err := selectOutputs(a.cfg.OutputList(), req.Output)
	if err != nil {
		return err
	}
	if err := checkUser(users, req.User); err != nil {
		return err
	}

	logger.Info("date range",
		zap.String("range", req.Range.String()),
		zap.Time("begin", req.Range.Begin),
		zap.Time("end", req.Range.End),
	)

	index := identity.NewIndex(users)
	normalizer := service.NewNormalizer(index, logger)
	dispatcher := service.NewDispatcher(a.sources, normalizer, a.cfg.Fetch.Concurrency, a.metrics, logger)

	sessions, err := dispatcher.Collect(ctx, sites, req.Range.Begin, req.Range.End)
	if err != nil {
		return err
	}
	logger.Info("sessions collected", zap.Int("count", len(sessions)), zap.Int("identifiers", index.Len()))

	meta := models.Meta{
		BeginDate: req.Range.Begin,
		EndDate:   req.Range.End,
		Today:     a.now(),
		Extra:     a.cfg.Meta,
	}
	generator := service.NewGenerator(users, sessions, meta, a.renderer, a.metrics, logger)
	for _, out := range outputs {
		if err := generator.Generate(ctx, out, req.User); err != nil {
			return err
		}
	}

	a.metrics.LastRunTimestamp.Set(float64(a.now().Unix()))
	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			logger.Warn("failed to write metrics textfile", zap.String("path", path), zap.Error(err))
		}
	}
	return nil
}

func (a *App) users(ctx context.Context) ([]models.User, error) {
	users := a.cfg.UserList()
	if a.directory == nil {
		return users, nil
	}
	listed, err := a.directory.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("user directory: %w", err)
	}
	return repository.MergeUsers(users, listed), nil
}

func selectSites(sites []models.Site, id string) ([]models.Site, error) {
	if id == "" {
		return sites, nil
	}
	for _, s := range sites {
		if s.ID == id {
			return []models.Site{s}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown site %q", appconfig.ErrConfig, id)
}

func selectOutputs(outputs []models.Output, id string) ([]models.Output, error) {
	if id == "" {
		return outputs, nil
	}
	for _, o := range outputs {
		if o.ID == id {
			return []models.Output{o}, nil
		}
	}
	return nil, fmt.Errorf("%w: unknown output %q", appconfig.ErrConfig, id)
}

func checkUser(users []models.User, id string) error {
	if id == "" {
		return nil
	}
	for _, u := range users {
		if u.ID == id {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown user %q", appconfig.ErrConfig, id)
}

// Close releases acquired resources.
func (a *App) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
