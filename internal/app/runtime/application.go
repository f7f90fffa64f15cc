// Package runtime composes the process: configuration, stores, Redis
// clients, task queue, websocket hub and the HTTP server.
package runtime

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq"

	app "github.com/EduShopX/edushop/internal/app"
	"github.com/EduShopX/edushop/internal/app/httpapi"
	"github.com/EduShopX/edushop/internal/app/metrics"
	auditsvc "github.com/EduShopX/edushop/internal/app/services/audit"
	"github.com/EduShopX/edushop/internal/app/storage/postgres"
	"github.com/EduShopX/edushop/internal/app/system"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	"github.com/EduShopX/edushop/internal/config"
	"github.com/EduShopX/edushop/internal/mail"
	"github.com/EduShopX/edushop/internal/middleware"
	"github.com/EduShopX/edushop/internal/platform/migrations"
	"github.com/EduShopX/edushop/internal/platform/redisclient"
	"github.com/EduShopX/edushop/internal/realtime"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/pkg/logger"
)

// Mode selects which components a process runs.
type Mode string

const (
	// ModeAPI serves HTTP and websockets. Workers run in the same process
	// only when RUN_WORKERS_INLINE is set or Redis is embedded.
	ModeAPI Mode = "api"
	// ModeWorker consumes the task queue and runs the beat scheduler.
	ModeWorker Mode = "worker"
)

// Application wires core dependencies and manages their lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	mode    Mode
	app     *app.Application
	handler http.Handler
	db      *sql.DB
	closers []func()
}

// NewApplication builds every component for mode. Nothing is started until
// Run.
func NewApplication(cfg *config.Config, mode Mode) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.New(cfg.Logging.LoggerConfig())
	a := &Application{cfg: cfg, log: log, mode: mode}
	if err := a.build(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *Application) build() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	cfg := a.cfg

	stores, err := a.openStores(ctx)
	if err != nil {
		return fmt.Errorf("configure stores: %w", err)
	}
	clients, embedded, err := a.openRedis(ctx)
	if err != nil {
		return err
	}

	priv, pub, ephemeral, err := auth.LoadKeys(cfg.Auth.PrivateKeyPEM, cfg.Auth.PublicKeyPEM)
	if err != nil {
		return fmt.Errorf("load signing keys: %w", err)
	}
	if ephemeral {
		a.log.Warn("JWT keys not configured; using an ephemeral key pair")
	}
	tokens := auth.NewTokens(priv, pub, auth.Config{
		Issuer:     cfg.Auth.Issuer,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	}, auth.NewRedisBlacklist(clients.cache, cfg.Cache.KeyPrefix))

	registry := tasks.NewRegistry()
	taskCfg := tasks.Config{
		Prefix:       cfg.Cache.KeyPrefix,
		DefaultQueue: cfg.Tasks.Queue,
		ResultTTL:    time.Duration(cfg.Tasks.ResultTTLHour) * time.Hour,
		// Must stay under the 15s Shutdown window.
		ShutdownGrace: cfg.Tasks.ShutdownGrace,
	}
	queue := tasks.NewClient(clients.broker, registry, taskCfg)

	infra := app.Infra{
		Tokens: tokens,
		Cache:  cache.NewRedis(clients.cache, cfg.Cache.KeyPrefix, a.log.Named("cache")).WithObserver(metrics.RecordCacheLookup),
		Queue:  queue,
		Mail:   a.mailSender(),
	}
	if cfg.AuditLogPath != "" {
		sink, err := auditsvc.NewFileSink(cfg.AuditLogPath)
		if err != nil {
			return fmt.Errorf("open audit log: %w", err)
		}
		a.closers = append(a.closers, func() { _ = sink.Close() })
		infra.AuditSink = sink
	}

	if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
		a.log.WithError(err).WithField("dir", cfg.ExportDir).Warn("export directory unavailable")
	}
	application, err := app.New(stores, infra, app.Settings{
		FrontendBaseURL:   cfg.FrontendBaseURL,
		PaymentGatewayURL: cfg.PaymentGateway,
		ExportDir:         cfg.ExportDir,
		VideoCourseMaxMB:  cfg.Media.VideoCourseMaxMB,
		VideoArticleMaxMB: cfg.Media.VideoArticleMaxMB,
	}, a.log.Named("app"))
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	application.RegisterTasks(registry)
	a.app = application

	runWorkers := a.mode == ModeWorker || cfg.Tasks.RunInline || embedded
	if runWorkers {
		worker := tasks.NewWorker(clients.broker, registry, taskCfg, cfg.Tasks.Concurrency, a.log.Named("worker"))
		worker.WithObserver(func(name string, status tasks.Status, d time.Duration) {
			metrics.RecordTaskRun(name, string(status), d)
		})
		application.Attach(worker)
		if cfg.Tasks.RunBeat {
			beat := tasks.NewBeat(queue, a.log.Named("beat"))
			if err := application.Schedule(beat); err != nil {
				return fmt.Errorf("schedule periodic tasks: %w", err)
			}
			application.Attach(beat)
		}
	}
	if a.mode == ModeWorker {
		return nil
	}

	hub := realtime.NewHub(a.log.Named("realtime"))
	channels := realtime.NewChannels(clients.channel, cfg.Cache.KeyPrefix)
	origins := cfg.HTTP.Origins()
	wsServer := realtime.NewServer(hub, channels, application.Chat, originMatcher(origins), a.log.Named("realtime"))

	resolver, err := middleware.NewIPResolver(cfg.HTTP.Proxies())
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}
	limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst, a.log.Named("ratelimit")).
		WithResolver(resolver)
	a.handler = httpapi.NewHandler(application, httpapi.Options{
		Realtime:       wsServer,
		Connections:    hub.Connections,
		AllowedOrigins: origins,
		RateLimiter:    limiter,
		IPResolver:     resolver,
		PageSize:       cfg.HTTP.PageSize,
		Probes:         a.probes(clients),
		Log:            a.log.Named("http"),
	})

	application.Attach(
		&hubService{hub: hub},
		&limiterCleanup{limiter: limiter},
		newHTTPService(cfg.HTTPAddr, a.handler, a.log.Named("http")),
	)
	return nil
}

func (a *Application) openStores(ctx context.Context) (app.Stores, error) {
	if a.cfg.Database.URL == "" {
		a.log.Warn("DATABASE_URL not set; using the in-memory store")
		return app.Stores{}, nil
	}
	db, err := openDatabase(ctx, a.cfg.Database)
	if err != nil {
		return app.Stores{}, err
	}
	a.db = db
	a.closers = append(a.closers, func() {
		if err := db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	})
	if a.cfg.Database.MigrateOnStart && a.mode == ModeAPI {
		if err := migrations.Apply(ctx, db); err != nil {
			return app.Stores{}, fmt.Errorf("apply migrations: %w", err)
		}
		a.log.Info("database migrations applied")
	}
	store := postgres.New(db)
	return app.Stores{
		Users:      store,
		Catalog:    store,
		Blog:       store,
		Shop:       store,
		Chat:       store,
		ShortLinks: store,
		Audit:      store,
		Blocklist:  store,
	}, nil
}

func openDatabase(ctx context.Context, cfg config.Database) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

type redisClients struct {
	cache   *redis.Client
	broker  *redis.Client
	channel *redis.Client
}

// openRedis connects the cache, broker and channel-layer clients. With no
// URLs at all (development) a single embedded server backs all three.
func (a *Application) openRedis(ctx context.Context) (redisClients, bool, error) {
	r := a.cfg.Redis
	if r.CacheURL == "" && r.BrokerURL == "" && r.ChannelURL == "" {
		client, stop, err := redisclient.Embedded()
		if err != nil {
			return redisClients{}, false, err
		}
		a.closers = append(a.closers, stop)
		a.log.Warn("Redis not configured; using an embedded server and inline workers")
		return redisClients{cache: client, broker: client, channel: client}, true, nil
	}

	open := func(name, url string) (*redis.Client, error) {
		if url == "" {
			url = r.CacheURL
		}
		client, err := redisclient.Open(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("%s redis: %w", name, err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		return client, nil
	}
	var out redisClients
	var err error
	if out.cache, err = open("cache", r.CacheURL); err != nil {
		return out, false, err
	}
	if out.broker, err = open("broker", r.BrokerURL); err != nil {
		return out, false, err
	}
	if out.channel, err = open("channel", r.ChannelURL); err != nil {
		return out, false, err
	}
	return out, false, nil
}

func (a *Application) mailSender() mail.Sender {
	m := a.cfg.Mail
	if m.Username == "" {
		return nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:     m.Host,
		Port:     m.Port,
		Username: m.Username,
		Password: m.Password,
		From:     m.From,
		UseTLS:   m.UseTLS,
	})
}

func (a *Application) probes(clients redisClients) map[string]httpapi.Probe {
	probes := map[string]httpapi.Probe{
		"redis": func(ctx context.Context) error { return clients.cache.Ping(ctx).Err() },
	}
	if clients.broker != clients.cache {
		probes["broker"] = func(ctx context.Context) error { return clients.broker.Ping(ctx).Err() }
	}
	if a.db != nil {
		probes["database"] = a.db.PingContext
	}
	return probes
}

// originMatcher accepts origins from the CORS list; "*" or an empty list
// accepts all.
func originMatcher(origins []string) func(string) bool {
	cors := middleware.NewCORSMiddleware(origins)
	if len(origins) == 0 || cors.AllowAll() {
		return nil
	}
	return cors.Allows
}

// App exposes the domain application.
func (a *Application) App() *app.Application { return a.app }

// Handler is the HTTP surface; nil in worker mode.
func (a *Application) Handler() http.Handler { return a.handler }

// Run starts every component and blocks until ctx is cancelled or the
// HTTP server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}
	a.log.WithField("mode", a.mode).WithField("env", a.cfg.Env).Info("edushop started")
	<-ctx.Done()
	return nil
}

// Shutdown stops components in reverse start order and releases clients.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	err := a.app.Stop(shutdownCtx)
	a.close()
	return err
}

func (a *Application) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// httpService runs the API server under the system manager.
type httpService struct {
	server *http.Server
	log    *logger.Logger
}

func newHTTPService(addr string, handler http.Handler, log *logger.Logger) *httpService {
	return &httpService{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: log,
	}
}

func (s *httpService) Name() string { return "http-server" }

func (s *httpService) Start(context.Context) error {
	go func() {
		s.log.WithField("addr", s.server.Addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Fatal("HTTP server failed")
		}
	}()
	return nil
}

func (s *httpService) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// hubService owns the websocket hub goroutine.
type hubService struct {
	hub    *realtime.Hub
	cancel context.CancelFunc
}

func (s *hubService) Name() string { return "websocket-hub" }

func (s *hubService) Start(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.hub.Run(ctx)
	return nil
}

func (s *hubService) Stop(context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

type limiterCleanup struct {
	limiter *middleware.RateLimiter
	cancel  context.CancelFunc
}

func (s *limiterCleanup) Name() string { return "rate-limit-cleanup" }

func (s *limiterCleanup) Start(context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.limiter.StartCleanup(ctx, time.Minute)
	return nil
}

func (s *limiterCleanup) Stop(context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	return nil
}

var (
	_ system.Service = (*httpService)(nil)
	_ system.Service = (*hubService)(nil)
	_ system.Service = (*limiterCleanup)(nil)
)
