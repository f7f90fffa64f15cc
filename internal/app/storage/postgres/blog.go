package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/EduShopX/edushop/internal/app/domain/blog"
	"github.com/EduShopX/edushop/internal/app/storage"
)

const articleColumns = `id, owner_id, title, content, video_url, is_published, created_at, updated_at`

const commentColumns = `id, user_id, article_id, text, public_comment, created_at`

// --- BlogStore ---------------------------------------------------------------

func (s *Store) CreateArticle(ctx context.Context, article blog.Article) (blog.Article, error) {
	now := time.Now().UTC()
	article.CreatedAt = now
	article.UpdatedAt = now
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO articles (owner_id, title, content, video_url, is_published, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, article.OwnerID, article.Title, article.Content, article.VideoURL, article.IsPublished, now, now).Scan(&article.ID)
	if err != nil {
		return blog.Article{}, mapError(err, "article "+article.Title)
	}
	return article, nil
}

func (s *Store) UpdateArticle(ctx context.Context, article blog.Article) (blog.Article, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE articles SET title = $2, content = $3, video_url = $4, is_published = $5, updated_at = $6
		WHERE id = $1
	`, article.ID, article.Title, article.Content, article.VideoURL, article.IsPublished, time.Now().UTC())
	if err != nil {
		return blog.Article{}, mapError(err, "article "+article.Title)
	}
	if err := expectRows(result, fmt.Sprintf("article %d", article.ID)); err != nil {
		return blog.Article{}, err
	}
	return s.GetArticle(ctx, article.ID)
}

func (s *Store) GetArticle(ctx context.Context, id int64) (blog.Article, error) {
	var article blog.Article
	if err := s.db.GetContext(ctx, &article, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id); err != nil {
		return blog.Article{}, mapError(err, fmt.Sprintf("article %d", id))
	}
	return article, nil
}

func (s *Store) ListArticles(ctx context.Context, filter storage.ArticleFilter) ([]blog.Article, error) {
	var w where
	if filter.OwnerID != 0 {
		w.add("owner_id = $%d", filter.OwnerID)
	}
	if filter.PublishedOnly {
		w.addRaw("is_published")
	}
	articles := []blog.Article{}
	err := s.db.SelectContext(ctx, &articles, `SELECT `+articleColumns+` FROM articles`+w.String()+` ORDER BY id`, w.args...)
	return articles, err
}

func (s *Store) DeleteArticle(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result, fmt.Sprintf("article %d", id))
}

func (s *Store) CreateComment(ctx context.Context, comment blog.Comment) (blog.Comment, error) {
	comment.CreatedAt = time.Now().UTC()
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO comments (user_id, article_id, text, public_comment, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, comment.UserID, comment.ArticleID, comment.Text, comment.PublicComment, comment.CreatedAt).Scan(&comment.ID)
	if err != nil {
		return blog.Comment{}, mapError(err, fmt.Sprintf("article %d", comment.ArticleID))
	}
	return comment, nil
}

func (s *Store) UpdateComment(ctx context.Context, comment blog.Comment) (blog.Comment, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE comments SET article_id = $2, text = $3, public_comment = $4 WHERE id = $1
	`, comment.ID, comment.ArticleID, comment.Text, comment.PublicComment)
	if err != nil {
		return blog.Comment{}, mapError(err, fmt.Sprintf("article %d", comment.ArticleID))
	}
	if err := expectRows(result, fmt.Sprintf("comment %d", comment.ID)); err != nil {
		return blog.Comment{}, err
	}
	return s.GetComment(ctx, comment.ID)
}

func (s *Store) GetComment(ctx context.Context, id int64) (blog.Comment, error) {
	var comment blog.Comment
	if err := s.db.GetContext(ctx, &comment, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id); err != nil {
		return blog.Comment{}, mapError(err, fmt.Sprintf("comment %d", id))
	}
	return comment, nil
}

func (s *Store) ListComments(ctx context.Context, filter storage.CommentFilter) ([]blog.Comment, error) {
	var w where
	if filter.UserID != 0 {
		w.add("user_id = $%d", filter.UserID)
	}
	if filter.ArticleID != 0 {
		w.add("article_id = $%d", filter.ArticleID)
	}
	if filter.PublicOnly {
		w.addRaw("public_comment")
	}
	comments := []blog.Comment{}
	err := s.db.SelectContext(ctx, &comments, `SELECT `+commentColumns+` FROM comments`+w.String()+` ORDER BY id`, w.args...)
	return comments, err
}

func (s *Store) DeleteComment(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectRows(result, fmt.Sprintf("comment %d", id))
}
