package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/romariotrain/holograma/internal/auth"
	"github.com/romariotrain/holograma/internal/media/domain"
	"github.com/romariotrain/holograma/internal/media/models"
	"github.com/romariotrain/holograma/internal/media/service"
)

const (
	maxFilesPerRequest = 20
	multipartMemory    = 32 << 20
)

type Handler struct {
	svc            *service.Service
	maxUploadBytes int64
	logger         zerolog.Logger
}

func New(svc *service.Service, maxUploadBytes int64, logger zerolog.Logger) *Handler {
	return &Handler{
		svc:            svc,
		maxUploadBytes: maxUploadBytes,
		logger:         logger.With().Str("component", "httpapi").Logger(),
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ListArticles(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := queryInt(r, "offset")
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid offset")
		return
	}

	articles, err := h.svc.ListArticles(r.Context(), limit, offset)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]ArticleResponse, 0, len(articles))
	for i := range articles {
		out = append(out, toArticleResponse(&articles[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}
	a, err := h.svc.GetArticle(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleResponse(a))
}

func (h *Handler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	var req CreateArticleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}

	a, err := h.svc.CreateArticle(r.Context(), principal(r), req.Title, req.Artist, req.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toArticleResponse(a))
}

func (h *Handler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	id, ok := articleID(w, r)
	if !ok {
		return
	}
	var req models.ArticleUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}

	a, err := h.svc.UpdateArticle(r.Context(), principal(r), id, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toArticleResponse(a))
}

func (h *Handler) OpenSession(w http.ResponseWriter, r *http.Request) {
	id, ok := articleID(w, r)
	if !ok {
		return
	}
	sess, err := h.svc.OpenSession(r.Context(), principal(r), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(sess))
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

// AddFiles reads every multipart "file" part and adds it to the session.
func (h *Handler) AddFiles(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes*maxFilesPerRequest+multipartMemory)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeErrorJSON(w, http.StatusRequestEntityTooLarge, "request too large")
			return
		}
		writeErrorJSON(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeErrorJSON(w, http.StatusBadRequest, "no file parts")
		return
	}
	if len(headers) > maxFilesPerRequest {
		writeErrorJSON(w, http.StatusBadRequest, fmt.Sprintf("at most %d files per request", maxFilesPerRequest))
		return
	}

	files := make([]models.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readPart(fh)
		if err != nil {
			writeErrorJSON(w, http.StatusBadRequest, "unreadable file part")
			return
		}
		files = append(files, f)
	}

	ids, err := sess.AddFiles(files)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, AddFilesResponse{IDs: ids, Session: toSessionResponse(sess)})
}

func readPart(fh *multipart.FileHeader) (models.File, error) {
	src, err := fh.Open()
	if err != nil {
		return models.File{}, err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return models.File{}, err
	}
	return models.File{
		Name:     fh.Filename,
		MIMEType: fh.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Remove(r.PathValue("itemID")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) RetryItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := sess.Retry(r.PathValue("itemID")); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toSessionResponse(sess))
}

func (h *Handler) Reorder(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := sess.Reorder(req.IDs); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(sess))
}

func (h *Handler) Payload(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	p, err := sess.Payload()
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	p, err := sess.Commit(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CommitResponse{Payload: p, Session: toSessionResponse(sess)})
}

func (h *Handler) CloseSession(w http.ResponseWriter, r *http.Request) {
	sid, ok := sessionID(w, r)
	if !ok {
		return
	}
	if err := h.svc.CloseSession(principal(r), sid); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*service.Session, bool) {
	sid, ok := sessionID(w, r)
	if !ok {
		return nil, false
	}
	sess, err := h.svc.Session(principal(r), sid)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	return sess, true
}

func principal(r *http.Request) models.Principal {
	p, _ := auth.PrincipalFrom(r.Context())
	return p
}

func articleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeErrorJSON(w, http.StatusBadRequest, "invalid article id")
		return 0, false
	}
	return id, true
}

func sessionID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	sid, err := uuid.Parse(r.PathValue("sid"))
	if err != nil {
		writeErrorJSON(w, http.StatusBadRequest, "invalid session id")
		return uuid.Nil, false
	}
	return sid, true
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorJSON(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeError maps domain errors to HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, models.ErrInvalidArgument), errors.Is(err, models.ErrInvalidReorder):
		status = http.StatusBadRequest
	case errors.Is(err, models.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrUploadsPending),
		errors.Is(err, models.ErrUploadsFailed),
		errors.Is(err, domain.ErrInvalidTransition):
		status = http.StatusConflict
	case errors.Is(err, models.ErrSessionClosed):
		status = http.StatusGone
	case errors.Is(err, models.ErrPersistence):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Int("status", status).Msg("request error")
		if status == http.StatusInternalServerError {
			writeErrorJSON(w, status, "internal error")
			return
		}
	}
	writeErrorJSON(w, status, err.Error())
}
