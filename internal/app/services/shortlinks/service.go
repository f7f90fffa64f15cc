// Package shortlinks creates short codes for courses and books, resolves
// them to frontend URLs and counts clicks in the background.
package shortlinks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/EduShopX/edushop/internal/app/domain/shortlink"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/internal/tasks"
	"github.com/EduShopX/edushop/pkg/logger"
)

// TaskClick increments a link's click counter.
const TaskClick = "shortlinks.click"

const (
	statsTTL        = 30 * time.Second
	maxCodeAttempts = 5
)

// ClickArgs are the click task arguments.
type ClickArgs struct {
	LinkID int64 `json:"link_id"`
}

// Stats is the public view of a link.
type Stats struct {
	Code     string `json:"code"`
	Clicks   int64  `json:"clicks"`
	Model    string `json:"model"`
	ObjectID int64  `json:"object_id"`
}

// Service manages short links.
type Service struct {
	links    storage.ShortLinkStore
	catalog  storage.CatalogStore
	shop     storage.ShopStore
	cache    cache.Cache
	queue    tasks.Enqueuer
	frontend string
	log      *logger.Logger
}

// New creates a short link service. frontend is the base URL targets
// redirect to.
func New(links storage.ShortLinkStore, catalog storage.CatalogStore, shop storage.ShopStore, c cache.Cache, queue tasks.Enqueuer, frontend string, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("shortlinks")
	}
	return &Service{
		links:    links,
		catalog:  catalog,
		shop:     shop,
		cache:    c,
		queue:    queue,
		frontend: strings.TrimRight(frontend, "/"),
		log:      log,
	}
}

// Create validates the target and stores a new link for it.
func (s *Service) Create(ctx context.Context, model string, objectID int64) (shortlink.Link, error) {
	target := shortlink.TargetType(strings.ToLower(strings.TrimSpace(model)))
	if err := s.checkTarget(ctx, target, objectID); err != nil {
		return shortlink.Link{}, err
	}
	return s.create(ctx, target, objectID)
}

// Ensure returns the existing link for a target or creates one. New courses
// and books are given a link this way.
func (s *Service) Ensure(ctx context.Context, target shortlink.TargetType, objectID int64) (shortlink.Link, error) {
	link, err := s.links.FindShortLink(ctx, target, objectID)
	if err == nil {
		return link, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return shortlink.Link{}, err
	}
	return s.create(ctx, target, objectID)
}

// CodeFor returns the target's code or "" when it has none.
func (s *Service) CodeFor(ctx context.Context, target shortlink.TargetType, objectID int64) string {
	link, err := s.links.FindShortLink(ctx, target, objectID)
	if err != nil {
		return ""
	}
	return link.Code
}

func (s *Service) create(ctx context.Context, target shortlink.TargetType, objectID int64) (shortlink.Link, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		link, err := s.links.CreateShortLink(ctx, shortlink.Link{
			Code:       newCode(),
			TargetType: target,
			TargetID:   objectID,
		})
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		return link, err
	}
	return shortlink.Link{}, fmt.Errorf("short link: no free code after %d attempts", maxCodeAttempts)
}

func newCode() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:shortlink.CodeLength]
}

func (s *Service) checkTarget(ctx context.Context, target shortlink.TargetType, objectID int64) error {
	var err error
	switch target {
	case shortlink.TargetCourse:
		_, err = s.catalog.GetCourse(ctx, objectID)
	case shortlink.TargetBook:
		_, err = s.shop.GetBook(ctx, objectID)
	default:
		return apperrors.Validation("model", "Model must be course or book.")
	}
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Validation("object_id", "Object not found.")
	}
	return err
}

// Stats returns click statistics, cached briefly.
func (s *Service) Stats(ctx context.Context, code string) (Stats, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyShortLinkStats(code), statsTTL, func(ctx context.Context) (Stats, error) {
		link, err := s.links.GetShortLinkByCode(ctx, code)
		if err != nil {
			return Stats{}, err
		}
		return Stats{Code: link.Code, Clicks: link.Clicks, Model: string(link.TargetType), ObjectID: link.TargetID}, nil
	})
}

// Resolve returns the frontend URL for code and queues a click.
func (s *Service) Resolve(ctx context.Context, code string) (string, error) {
	link, err := s.links.GetShortLinkByCode(ctx, code)
	if err != nil {
		return "", err
	}
	if s.queue != nil {
		if _, err := s.queue.Enqueue(ctx, TaskClick, ClickArgs{LinkID: link.ID}); err != nil {
			s.log.WithContext(ctx).WithError(err).WithField("code", code).Warn("enqueue click")
		}
	}
	return s.TargetURL(link), nil
}

// TargetURL is where a link points on the frontend.
func (s *Service) TargetURL(link shortlink.Link) string {
	if link.TargetType == shortlink.TargetCourse {
		return fmt.Sprintf("%s/courses/%d", s.frontend, link.TargetID)
	}
	return fmt.Sprintf("%s/%d/", s.frontend, link.TargetID)
}

// RegisterTasks binds the click counter job.
func (s *Service) RegisterTasks(registry *tasks.Registry) {
	registry.Register(TaskClick, s.handleClick, tasks.Options{MaxRetries: 3, RetryDelay: 5 * time.Second})
}

func (s *Service) handleClick(ctx context.Context, t *tasks.Task) (interface{}, error) {
	var args ClickArgs
	if err := t.Bind(&args); err != nil {
		return nil, fmt.Errorf("%w: %v", tasks.ErrNoRetry, err)
	}
	if err := s.links.IncrementClicks(ctx, args.LinkID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", tasks.ErrNoRetry, err)
		}
		return nil, err
	}
	return map[string]int64{"link_id": args.LinkID}, nil
}
