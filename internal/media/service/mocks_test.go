package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/holograma/internal/media/models"
)

type RepoMock struct {
	mock.Mock
}

func (m *RepoMock) ListArticles(ctx context.Context, limit, offset int) ([]models.Article, error) {
	args := m.Called(ctx, limit, offset)
	if v := args.Get(0); v != nil {
		return v.([]models.Article), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) GetArticle(ctx context.Context, id int64) (*models.Article, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*models.Article), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) CreateArticle(ctx context.Context, a *models.Article) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *RepoMock) UpdateArticle(ctx context.Context, id int64, upd models.ArticleUpdate) (*models.Article, error) {
	args := m.Called(ctx, id, upd)
	if v := args.Get(0); v != nil {
		return v.(*models.Article), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) ListArticleMedia(ctx context.Context, articleID int64) ([]models.StoredMedia, error) {
	args := m.Called(ctx, articleID)
	if v := args.Get(0); v != nil {
		return v.([]models.StoredMedia), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *RepoMock) ApplyMediaCommit(ctx context.Context, articleID int64, payload models.CommitPayload) ([]models.StoredMedia, error) {
	args := m.Called(ctx, articleID, payload)
	if v := args.Get(0); v != nil {
		return v.([]models.StoredMedia), args.Error(1)
	}
	return nil, args.Error(1)
}

type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) Upload(ctx context.Context, data []byte, mimeType string) (models.UploadResult, error) {
	args := m.Called(ctx, data, mimeType)
	return args.Get(0).(models.UploadResult), args.Error(1)
}
