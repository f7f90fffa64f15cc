package blog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	domainaudit "github.com/EduShopX/edushop/internal/app/domain/audit"
	"github.com/EduShopX/edushop/internal/app/domain/blog"
	"github.com/EduShopX/edushop/internal/app/storage"
	"github.com/EduShopX/edushop/internal/auth"
	"github.com/EduShopX/edushop/internal/cache"
	apperrors "github.com/EduShopX/edushop/internal/errors"
)

// CommentInput creates or patches a comment. Public and User are honoured
// for staff callers only.
type CommentInput struct {
	Article *int64  `json:"article_comment"`
	Text    *string `json:"text_comment"`
	Public  *bool   `json:"public_comment"`
	User    *int64  `json:"user_auther"`
}

// ListPublicComments returns comments visible to everyone.
func (s *Service) ListPublicComments(ctx context.Context) ([]blog.Comment, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyCommentsPublic, cache.DefaultTTL, func(ctx context.Context) ([]blog.Comment, error) {
		return s.store.ListComments(ctx, storage.CommentFilter{PublicOnly: true})
	})
}

// ListUserComments returns the comments userID wrote.
func (s *Service) ListUserComments(ctx context.Context, userID int64) ([]blog.Comment, error) {
	return cache.GetOrLoad(ctx, s.cache, cache.KeyCommentsUser(userID), cache.DefaultTTL, func(ctx context.Context) ([]blog.Comment, error) {
		return s.store.ListComments(ctx, storage.CommentFilter{UserID: userID})
	})
}

// ListAllComments returns every comment for staff.
func (s *Service) ListAllComments(ctx context.Context) ([]blog.Comment, error) {
	return s.store.ListComments(ctx, storage.CommentFilter{})
}

// GetComment returns a comment p wrote, or any for staff.
func (s *Service) GetComment(ctx context.Context, p auth.Principal, id int64) (blog.Comment, error) {
	comment, err := s.store.GetComment(ctx, id)
	if err != nil {
		return blog.Comment{}, err
	}
	if !p.IsAdmin() && comment.UserID != p.UserID {
		return blog.Comment{}, fmt.Errorf("comment %d: %w", id, storage.ErrNotFound)
	}
	return comment, nil
}

// CreateComment adds a public comment by the caller.
func (s *Service) CreateComment(ctx context.Context, p auth.Principal, in CommentInput) (blog.Comment, error) {
	comment := blog.Comment{UserID: p.UserID, PublicComment: true}
	if in.Article == nil {
		return blog.Comment{}, apperrors.Validation("article_comment", "This field is required.")
	}
	if in.Text == nil {
		return blog.Comment{}, apperrors.Validation("text_comment", "This field is required.")
	}
	if err := applyCommentInput(p, &comment, in); err != nil {
		return blog.Comment{}, err
	}
	created, err := s.store.CreateComment(ctx, comment)
	if err != nil {
		return blog.Comment{}, commentError(err)
	}
	s.invalidateComment(ctx, created)
	s.record(ctx, domainaudit.ActionAdd, "comment", created.ID, s.commentRepr(ctx, created))
	return created, nil
}

// UpdateComment patches a comment the caller may manage.
func (s *Service) UpdateComment(ctx context.Context, p auth.Principal, id int64, in CommentInput) (blog.Comment, error) {
	comment, err := s.GetComment(ctx, p, id)
	if err != nil {
		return blog.Comment{}, err
	}
	previous := comment
	if err := applyCommentInput(p, &comment, in); err != nil {
		return blog.Comment{}, err
	}
	updated, err := s.store.UpdateComment(ctx, comment)
	if err != nil {
		return blog.Comment{}, commentError(err)
	}
	s.invalidateComment(ctx, previous)
	s.invalidateComment(ctx, updated)
	s.record(ctx, domainaudit.ActionChange, "comment", updated.ID, s.commentRepr(ctx, updated))
	return updated, nil
}

// DeleteComment removes a comment the caller may manage.
func (s *Service) DeleteComment(ctx context.Context, p auth.Principal, id int64) error {
	comment, err := s.GetComment(ctx, p, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteComment(ctx, id); err != nil {
		return err
	}
	s.invalidateComment(ctx, comment)
	s.record(ctx, domainaudit.ActionDelete, "comment", id, s.commentRepr(ctx, comment))
	return nil
}

func (s *Service) invalidateComment(ctx context.Context, comment blog.Comment) {
	keys := []string{cache.KeyCommentsUser(comment.UserID)}
	if comment.PublicComment {
		keys = append(keys, cache.KeyCommentsPublic)
	}
	cache.Invalidate(ctx, s.cache, keys...)
}

// commentRepr renders "<username> - <article title>".
func (s *Service) commentRepr(ctx context.Context, comment blog.Comment) string {
	username := fmt.Sprintf("user %d", comment.UserID)
	if u, err := s.users.GetUser(ctx, comment.UserID); err == nil {
		username = u.Username
	}
	title := fmt.Sprintf("article %d", comment.ArticleID)
	if a, err := s.store.GetArticle(ctx, comment.ArticleID); err == nil {
		title = a.Title
	}
	return username + " - " + title
}

func applyCommentInput(p auth.Principal, comment *blog.Comment, in CommentInput) error {
	if in.Article != nil {
		comment.ArticleID = *in.Article
	}
	if in.Text != nil {
		text := strings.TrimSpace(*in.Text)
		if text == "" {
			return apperrors.Validation("text_comment", "This field may not be blank.")
		}
		if utf8.RuneCountInString(text) > blog.MaxCommentLength {
			return apperrors.Validation("text_comment",
				fmt.Sprintf("Ensure this field has no more than %d characters.", blog.MaxCommentLength))
		}
		comment.Text = text
	}
	if p.IsAdmin() {
		if in.Public != nil {
			comment.PublicComment = *in.Public
		}
		if in.User != nil {
			comment.UserID = *in.User
		}
	}
	return nil
}

func commentError(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperrors.Validation("article_comment", "Article not found.")
	}
	return err
}
