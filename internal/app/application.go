package app

import (
	"context"
	"fmt"

	"github.com/EduShopX/edushop/internal/app/services/accounts"
	auditsvc "github.com/EduShopX/edushop/internal/app/services/audit"
	"github.com/EduShopX/edushop/internal/app/services/blocklist"
	"github.com/EduShopX/edushop/internal/app/services/blog"
	"github.com/EduShopX/edushop/internal/app/services/catalog"
	"github.com/EduShopX/edushop/internal/app/services/chat"
	"github.com/EduShopX/edushop/internal/app/services/email"
	"github.com/EduShopX/edushop/internal/app/services/reports"
	"github.com/EduShopX/edushop/internal/app/services/shop"
	"github.com/EduShopX/edushop/internal/app/services/shortlinks"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/app/storage/memory"
	"github.com/EduShopX/edushop/internal/app/system"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	"github.com/EduShopX/edushop/internal/mail"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/pkg/logger"
)

// Stores encapsulates persistence dependencies. Nil stores default to the
// in-memory implementation.
type Stores struct {
	Users      storage.UserStore
	Catalog    storage.CatalogStore
	Blog       storage.BlogStore
	Shop       storage.ShopStore
	Chat       storage.ChatStore
	ShortLinks storage.ShortLinkStore
	Audit      storage.AuditStore
	Blocklist  storage.BlocklistStore
}

// Infra carries the shared clients services are built on. A nil Cache
// disables caching; a nil Mail sender logs messages instead of sending.
type Infra struct {
	Tokens    *auth.Tokens
	Cache     cache.Cache
	Queue     tasks.Queue
	Mail      mail.Sender
	AuditSink auditsvc.Sink
}

// Settings are the tunables services read at construction.
type Settings struct {
	FrontendBaseURL   string
	PaymentGatewayURL string
	ExportDir         string
	VideoCourseMaxMB  int
	VideoArticleMaxMB int
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger
	mail    mail.Sender

	Tokens     *auth.Tokens
	Accounts   *accounts.Service
	Audit      *auditsvc.Service
	Catalog    *catalog.Service
	Blog       *blog.Service
	Shop       *shop.Service
	ShortLinks *shortlinks.Service
	Reports    *reports.Service
	Chat       *chat.Service
	Email      *email.Service
	Blocklist  *blocklist.Service
}

// New builds a fully initialised application with the provided stores.
func New(stores Stores, infra Infra, settings Settings, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if infra.Tokens == nil {
		return nil, fmt.Errorf("token service is required")
	}
	if infra.Queue == nil {
		return nil, fmt.Errorf("task queue is required")
	}

	mem := memory.New()
	if stores.Users == nil {
		stores.Users = mem
	}
	if stores.Catalog == nil {
		stores.Catalog = mem
	}
	if stores.Blog == nil {
		stores.Blog = mem
	}
	if stores.Shop == nil {
		stores.Shop = mem
	}
	if stores.Chat == nil {
		stores.Chat = mem
	}
	if stores.ShortLinks == nil {
		stores.ShortLinks = mem
	}
	if stores.Audit == nil {
		stores.Audit = mem
	}
	if stores.Blocklist == nil {
		stores.Blocklist = mem
	}
	if infra.Mail == nil {
		infra.Mail = mail.NewLogSender(log.Named("mail"))
	}

	auditService := auditsvc.New(stores.Audit, stores.Users, infra.AuditSink, log.Named("audit"))
	linkService := shortlinks.New(stores.ShortLinks, stores.Catalog, stores.Shop, infra.Cache, infra.Queue, settings.FrontendBaseURL, log.Named("shortlinks"))
	catalogService := catalog.New(stores.Users, stores.Catalog, stores.Shop, infra.Cache, linkService, auditService,
		catalog.Limits{VideoMaxMB: settings.VideoCourseMaxMB}, log.Named("catalog"))
	shopService := shop.New(stores.Shop, stores.Catalog, infra.Cache, linkService, catalogService, auditService, log.Named("shop")).
		WithGateway(settings.PaymentGatewayURL)

	accountsService := accounts.New(stores.Users, infra.Tokens, infra.Queue, log.Named("accounts")).
		WithAudit(auditService).
		WithCache(infra.Cache)

	return &Application{
		manager:    system.NewManager(log),
		log:        log,
		mail:       infra.Mail,
		Tokens:     infra.Tokens,
		Accounts:   accountsService,
		Audit:      auditService,
		Catalog:    catalogService,
		Blog:       blog.New(stores.Users, stores.Blog, infra.Cache, auditService, settings.VideoArticleMaxMB, log.Named("blog")),
		Shop:       shopService,
		ShortLinks: linkService,
		Reports:    reports.New(stores.Users, stores.Catalog, stores.Shop, infra.Cache, infra.Queue, settings.ExportDir, log.Named("reports")),
		Chat:       chat.New(stores.Chat, infra.Cache, log.Named("chat")),
		Email:      email.New(stores.Users, infra.Queue, infra.Mail, log.Named("email")),
		Blocklist:  blocklist.New(stores.Blocklist, infra.Cache, auditService, log.Named("blocklist")),
	}, nil
}

// RegisterTasks binds every background job to registry. The API process
// registers them too so enqueued tasks pick up their queue and retry budget.
func (a *Application) RegisterTasks(registry *tasks.Registry) {
	accounts.RegisterTasks(registry, a.mail)
	a.ShortLinks.RegisterTasks(registry)
	a.Reports.RegisterTasks(registry)
	a.Email.RegisterTasks(registry)
	a.Chat.RegisterTasks(registry)
}

// Schedule adds the periodic jobs to beat.
func (a *Application) Schedule(beat *tasks.Beat) error {
	return chat.ScheduleCleanup(beat)
}

// Attach registers an additional lifecycle-managed service. Call before Start.
func (a *Application) Attach(services ...system.Service) {
	a.manager.Register(services...)
}

// Services names the attached lifecycle services.
func (a *Application) Services() []string {
	return a.manager.Names()
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
