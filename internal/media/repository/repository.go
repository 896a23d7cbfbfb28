package repository

import (
	"context"

	"github.com/romariotrain/holograma/internal/media/models"
)

type ArticleRepository interface {
	ListArticles(ctx context.Context, limit, offset int) ([]models.Article, error)
	GetArticle(ctx context.Context, id int64) (*models.Article, error)
	CreateArticle(ctx context.Context, a *models.Article) error
	UpdateArticle(ctx context.Context, id int64, upd models.ArticleUpdate) (*models.Article, error)

	// ListArticleMedia returns the media of an article ordered by position.
	ListArticleMedia(ctx context.Context, articleID int64) ([]models.StoredMedia, error)
	// ApplyMediaCommit applies a commit payload atomically and returns the
	// refreshed media of the article.
	ApplyMediaCommit(ctx context.Context, articleID int64, payload models.CommitPayload) ([]models.StoredMedia, error)
}
