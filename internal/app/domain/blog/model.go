package blog

import "time"

// MaxCommentLength bounds Comment.Text.
const MaxCommentLength = 360

// Article is a blog post. Title is unique per owner.
type Article struct {
	ID          int64     `json:"id" db:"id"`
	OwnerID     int64     `json:"owner" db:"owner_id"`
	Title       string    `json:"title" db:"title"`
	Content     string    `json:"content" db:"content"`
	VideoURL    string    `json:"video,omitempty" db:"video_url"`
	IsPublished bool      `json:"is_published" db:"is_published"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Comment is a reader's note on an article.
type Comment struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_auther" db:"user_id"`
	ArticleID     int64     `json:"article" db:"article_id"`
	Text          string    `json:"text" db:"text"`
	PublicComment bool      `json:"public_comment" db:"public_comment"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}
