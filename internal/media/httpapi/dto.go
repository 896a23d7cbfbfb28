package httpapi

import (
	"time"

	"github.com/google/uuid"

	"github.com/romariotrain/holograma/internal/media/models"
	"github.com/romariotrain/holograma/internal/media/service"
)

type CreateArticleRequest struct {
	Title   string `json:"title"`
	Artist  string `json:"artist"`
	Content string `json:"content"`
}

type ReorderRequest struct {
	IDs []string `json:"ids"`
}

type ArticleResponse struct {
	ID        int64                `json:"id"`
	Title     string               `json:"title"`
	Artist    string               `json:"artist"`
	Content   string               `json:"content"`
	AuthorUID string               `json:"author_uid"`
	CreatedAt time.Time            `json:"created_at"`
	Media     []models.StoredMedia `json:"media"`
	Images    []string             `json:"images"`
	Videos    []string             `json:"videos"`
	Audios    []string             `json:"audios"`
}

type SessionResponse struct {
	ID                 uuid.UUID          `json:"id"`
	ArticleID          int64              `json:"article_id"`
	CreatedAt          time.Time          `json:"created_at"`
	Items              []models.MediaItem `json:"items"`
	PendingDeletionIDs []string           `json:"pending_deletion_ids"`
	Pending            int                `json:"pending"`
	Failed             int                `json:"failed"`
}

type AddFilesResponse struct {
	IDs     []string        `json:"ids"`
	Session SessionResponse `json:"session"`
}

type CommitResponse struct {
	Payload models.CommitPayload `json:"payload"`
	Session SessionResponse      `json:"session"`
}

func toArticleResponse(a *models.Article) ArticleResponse {
	media := a.Media
	if media == nil {
		media = []models.StoredMedia{}
	}
	return ArticleResponse{
		ID:        a.ID,
		Title:     a.Title,
		Artist:    a.Artist,
		Content:   a.Content,
		AuthorUID: a.AuthorUID,
		CreatedAt: a.CreatedAt,
		Media:     media,
		Images:    a.URLsOf(models.Image),
		Videos:    a.URLsOf(models.Video),
		Audios:    a.URLsOf(models.Audio),
	}
}

func toSessionResponse(s *service.Session) SessionResponse {
	snap := s.Snapshot()
	return SessionResponse{
		ID:                 s.ID,
		ArticleID:          s.ArticleID,
		CreatedAt:          s.CreatedAt,
		Items:              snap.Items,
		PendingDeletionIDs: snap.PendingDeletionIDs,
		Pending:            snap.Pending,
		Failed:             snap.Failed,
	}
}
