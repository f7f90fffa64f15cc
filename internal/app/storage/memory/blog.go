package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/blog"
	"github.com/EduShopX/edushop/internal/app/storage"
)

// BlogStore implementation ----------------------------------------------------

func (s *Store) articleTitleTakenLocked(article blog.Article) bool {
	for _, existing := range s.articles {
		if existing.ID != article.ID && existing.OwnerID == article.OwnerID && strings.EqualFold(existing.Title, article.Title) {
			return true
		}
	}
	return false
}

func (s *Store) CreateArticle(_ context.Context, article blog.Article) (blog.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[article.OwnerID]; !ok {
		return blog.Article{}, fmt.Errorf("user %d: %w", article.OwnerID, storage.ErrNotFound)
	}
	article.ID = 0
	if s.articleTitleTakenLocked(article) {
		return blog.Article{}, fmt.Errorf("article %s: %w", article.Title, storage.ErrConflict)
	}
	now := time.Now().UTC()
	article.ID = s.nextIDLocked()
	article.CreatedAt = now
	article.UpdatedAt = now
	s.articles[article.ID] = article
	return article, nil
}

func (s *Store) UpdateArticle(_ context.Context, article blog.Article) (blog.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.articles[article.ID]
	if !ok {
		return blog.Article{}, fmt.Errorf("article %d: %w", article.ID, storage.ErrNotFound)
	}
	if s.articleTitleTakenLocked(article) {
		return blog.Article{}, fmt.Errorf("article %s: %w", article.Title, storage.ErrConflict)
	}
	article.CreatedAt = original.CreatedAt
	article.UpdatedAt = time.Now().UTC()
	s.articles[article.ID] = article
	return article, nil
}

func (s *Store) GetArticle(_ context.Context, id int64) (blog.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	article, ok := s.articles[id]
	if !ok {
		return blog.Article{}, fmt.Errorf("article %d: %w", id, storage.ErrNotFound)
	}
	return article, nil
}

func (s *Store) ListArticles(_ context.Context, filter storage.ArticleFilter) ([]blog.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]blog.Article, 0)
	for _, article := range s.articles {
		if filter.OwnerID != 0 && article.OwnerID != filter.OwnerID {
			continue
		}
		if filter.PublishedOnly && !article.IsPublished {
			continue
		}
		result = append(result, article)
	}
	sortByID(result, func(a blog.Article) int64 { return a.ID })
	return result, nil
}

func (s *Store) DeleteArticle(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.articles[id]; !ok {
		return fmt.Errorf("article %d: %w", id, storage.ErrNotFound)
	}
	s.deleteArticleLocked(id)
	return nil
}

func (s *Store) deleteArticleLocked(id int64) {
	delete(s.articles, id)
	for cid, c := range s.comments {
		if c.ArticleID == id {
			delete(s.comments, cid)
		}
	}
}

func (s *Store) CreateComment(_ context.Context, comment blog.Comment) (blog.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.articles[comment.ArticleID]; !ok {
		return blog.Comment{}, fmt.Errorf("article %d: %w", comment.ArticleID, storage.ErrNotFound)
	}
	if _, ok := s.users[comment.UserID]; !ok {
		return blog.Comment{}, fmt.Errorf("user %d: %w", comment.UserID, storage.ErrNotFound)
	}
	comment.ID = s.nextIDLocked()
	comment.CreatedAt = time.Now().UTC()
	s.comments[comment.ID] = comment
	return comment, nil
}

func (s *Store) UpdateComment(_ context.Context, comment blog.Comment) (blog.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.comments[comment.ID]
	if !ok {
		return blog.Comment{}, fmt.Errorf("comment %d: %w", comment.ID, storage.ErrNotFound)
	}
	if _, ok := s.articles[comment.ArticleID]; !ok {
		return blog.Comment{}, fmt.Errorf("article %d: %w", comment.ArticleID, storage.ErrNotFound)
	}
	comment.CreatedAt = original.CreatedAt
	s.comments[comment.ID] = comment
	return comment, nil
}

func (s *Store) GetComment(_ context.Context, id int64) (blog.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	comment, ok := s.comments[id]
	if !ok {
		return blog.Comment{}, fmt.Errorf("comment %d: %w", id, storage.ErrNotFound)
	}
	return comment, nil
}

func (s *Store) ListComments(_ context.Context, filter storage.CommentFilter) ([]blog.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]blog.Comment, 0)
	for _, comment := range s.comments {
		if filter.UserID != 0 && comment.UserID != filter.UserID {
			continue
		}
		if filter.ArticleID != 0 && comment.ArticleID != filter.ArticleID {
			continue
		}
		if filter.PublicOnly && !comment.PublicComment {
			continue
		}
		result = append(result, comment)
	}
	sortByID(result, func(c blog.Comment) int64 { return c.ID })
	return result, nil
}

func (s *Store) DeleteComment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.comments[id]; !ok {
		return fmt.Errorf("comment %d: %w", id, storage.ErrNotFound)
	}
	delete(s.comments, id)
	return nil
}
