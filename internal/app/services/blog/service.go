// Package blog manages articles and the comments readers leave on them.
package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	domainaudit "github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/domain/blog"
	"github.com/EduShopX/edushop/internal/app/services/audit"
	"github.com/EduShopX/edushop/internal/app/services/catalog"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
	"github.com/EduShopX/edushop/pkg/logger"
)

// ArticleInput creates or patches an article. Nil fields keep their value.
type ArticleInput struct {
	Title       *string `json:"title"`
	Content     *string `json:"content"`
	VideoURL    *string `json:"video_article"`
	SizeBytes   *int64  `json:"size_bytes"`
	IsPublished *bool   `json:"is_published"`
	// Owner is honoured for staff callers only.
	Owner *int64 `json:"owner"`
}

// ArticleOwner is the author summary attached to listed articles.
type ArticleOwner struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

// ArticleView is an article with its author expanded.
type ArticleView struct {
	blog.Article
	Owner ArticleOwner `json:"owner"`
}

// Service owns articles and comments.
type Service struct {
	users      storage.UserStore
	store      storage.BlogStore
	cache      cache.Cache
	audit      audit.Recorder
	videoMaxMB int
	log        *logger.Logger
}

// New creates a blog service. rec may be nil.
func New(users storage.UserStore, store storage.BlogStore, c cache.Cache, rec audit.Recorder, videoMaxMB int, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("blog")
	}
	if videoMaxMB <= 0 {
		videoMaxMB = 200
	}
	return &Service{users: users, store: store, cache: c, audit: rec, videoMaxMB: videoMaxMB, log: log}
}

func (s *Service) record(ctx context.Context, action domainaudit.Action, model string, id int64, repr string) {
	if s.audit != nil {
		s.audit.Record(ctx, action, model, id, repr)
	}
}

// ListPublished returns published articles with their authors.
func (s *Service) ListPublished(ctx context.Context) ([]ArticleView, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyArticlesPublished, cache.DefaultTTL, func(ctx context.Context) ([]ArticleView, error) {
		articles, err := s.store.ListArticles(ctx, storage.ArticleFilter{PublishedOnly: true})
		if err != nil {
			return nil, err
		}
		return s.views(ctx, articles)
	})
}

// ListAllArticles returns every article for staff.
func (s *Service) ListAllArticles(ctx context.Context) ([]ArticleView, error) {
	articles, err := s.store.ListArticles(ctx, storage.ArticleFilter{})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, articles)
}

func (s *Service) views(ctx context.Context, articles []blog.Article) ([]ArticleView, error) {
	owners := make(map[int64]ArticleOwner)
	out := make([]ArticleView, 0, len(articles))
	for _, a := range articles {
		owner, ok := owners[a.OwnerID]
		if !ok {
			u, err := s.users.GetUser(ctx, a.OwnerID)
			if err != nil && !errors.Is(err, storage.ErrNotFound) {
				return nil, err
			}
			owner = ArticleOwner{ID: a.OwnerID, Username: u.Username, FirstName: u.FirstName, LastName: u.LastName, Email: u.Email}
			owners[a.OwnerID] = owner
		}
		out = append(out, ArticleView{Article: a, Owner: owner})
	}
	return out, nil
}

// ListUserArticles returns the articles userID wrote.
func (s *Service) ListUserArticles(ctx context.Context, userID int64) ([]blog.Article, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyArticlesUser(userID), cache.DefaultTTL, func(ctx context.Context) ([]blog.Article, error) {
		return s.store.ListArticles(ctx, storage.ArticleFilter{OwnerID: userID})
	})
}

// GetArticle returns an article p owns, or any for staff.
func (s *Service) GetArticle(ctx context.Context, p auth.Principal, id int64) (blog.Article, error) {
	article, err := s.store.GetArticle(ctx, id)
	if err != nil {
		return blog.Article{}, err
	}
	if !p.IsAdmin() && article.OwnerID != p.UserID {
		return blog.Article{}, fmt.Errorf("article %d: %w", id, storage.ErrNotFound)
	}
	return article, nil
}

// CreateArticle adds an article owned by the caller.
func (s *Service) CreateArticle(ctx context.Context, p auth.Principal, in ArticleInput) (blog.Article, error) {
	article := blog.Article{OwnerID: p.UserID}
	if err := s.applyArticleInput(p, &article, in); err != nil {
		return blog.Article{}, err
	}
	if article.Title == "" {
		return blog.Article{}, apperrors.Validation("title", "This field is required.")
	}
	if article.Content == "" {
		return blog.Article{}, apperrors.Validation("content", "This field is required.")
	}
	created, err := s.store.CreateArticle(ctx, article)
	if err != nil {
		return blog.Article{}, articleError(err)
	}
	s.invalidateArticle(ctx, created)
	s.record(ctx, domainaudit.ActionAdd, "article", created.ID, created.Title)
	return created, nil
}

// UpdateArticle patches an article the caller may manage.
func (s *Service) UpdateArticle(ctx context.Context, p auth.Principal, id int64, in ArticleInput) (blog.Article, error) {
	article, err := s.GetArticle(ctx, p, id)
	if err != nil {
		return blog.Article{}, err
	}
	previous := article
	if err := s.applyArticleInput(p, &article, in); err != nil {
		return blog.Article{}, err
	}
	if article.Title == "" {
		return blog.Article{}, apperrors.Validation("title", "This field is required.")
	}
	updated, err := s.store.UpdateArticle(ctx, article)
	if err != nil {
		return blog.Article{}, articleError(err)
	}
	s.invalidateArticle(ctx, previous)
	s.invalidateArticle(ctx, updated)
	s.record(ctx, domainaudit.ActionChange, "article", updated.ID, updated.Title)
	return updated, nil
}

// DeleteArticle removes an article and its comments.
func (s *Service) DeleteArticle(ctx context.Context, p auth.Principal, id int64) error {
	article, err := s.GetArticle(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteArticle(ctx, id); err != nil {
		return err
	}
	s.invalidateArticle(ctx, article)
	cache.Invalidate(ctx, s.cache, cache.KeyCommentsUserAll, cache.KeyCommentsPublic)
	s.record(ctx, domainaudit.ActionDelete, "article", id, article.Title)
	return nil
}

func (s *Service) invalidateArticle(ctx context.Context, article blog.Article) {
	cache.Invalidate(ctx, s.cache, cache.KeyArticlesUser(article.OwnerID), cache.KeyArticlesPublished)
}

func (s *Service) applyArticleInput(p auth.Principal, article *blog.Article, in ArticleInput) error {
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if utf8.RuneCountInString(title) > 200 {
			return apperrors.Validation("title", "Ensure this field has no more than 200 characters.")
		}
		article.Title = title
	}
	if in.Content != nil {
		article.Content = strings.TrimSpace(*in.Content)
	}
	if in.VideoURL != nil {
		ref := strings.TrimSpace(*in.VideoURL)
		if ref != "" {
			if err := catalog.ValidateVideoRef(ref); err != nil {
				return err
			}
		}
		article.VideoURL = ref
	}
	if in.SizeBytes != nil {
		if err := catalog.ValidateVideoSize(*in.SizeBytes, s.videoMaxMB); err != nil {
			return err
		}
	}
	if in.IsPublished != nil {
		article.IsPublished = *in.IsPublished
	}
	if in.Owner != nil && p.IsAdmin() {
		article.OwnerID = *in.Owner
	}
	return nil
}

func articleError(err error) error {
	switch {
	case errors.Is(err, storage.ErrConflict):
		return apperrors.Validation("title", "You already have an article with this title.")
	case errors.Is(err, storage.ErrNotFound):
		return apperrors.Validation("owner", "User not found.")
	}
	return err
}
