package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/holograma/internal/auth"
	"github.com/romariotrain/holograma/internal/media/models"
	"github.com/romariotrain/holograma/internal/media/repository"
	"github.com/romariotrain/holograma/internal/media/service"
)

// fakeUploader hosts everything under cdn.test and fails data starting with "fail".
type fakeUploader struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeUploader) Upload(ctx context.Context, data []byte, mimeType string) (models.UploadResult, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if bytes.HasPrefix(data, []byte("fail")) {
		return models.UploadResult{}, errors.New("host rejected file")
	}
	return models.UploadResult{URL: "https://cdn.test/" + string(data)}, nil
}

type testAPI struct {
	srv    *httptest.Server
	svc    *service.Service
	repo   *repository.MemoryRepository
	admin  string
	reader string
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	repo := repository.NewMemoryRepository()
	svc := service.New(repo, &fakeUploader{}, service.Config{UploadConcurrency: 2, MaxUploadBytes: 1 << 20}, zerolog.Nop())
	authn := auth.New("test-secret", "holograma", time.Hour)
	h := New(svc, 1<<20, zerolog.Nop())

	srv := httptest.NewServer(NewRouter(h, authn, nil))
	t.Cleanup(func() {
		srv.Close()
		svc.Shutdown()
	})

	adminToken, err := authn.Issue(models.Principal{UID: "admin-1", Role: models.RoleAdmin})
	require.NoError(t, err)
	readerToken, err := authn.Issue(models.Principal{UID: "reader-1", Role: models.RoleReader})
	require.NoError(t, err)

	return &testAPI{srv: srv, svc: svc, repo: repo, admin: adminToken, reader: readerToken}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (int, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, a.srv.URL+path, body)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, raw
}

func (a *testAPI) doJSON(t *testing.T, method, path, token string, in any, out any) int {
	t.Helper()
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	status, raw := a.do(t, method, path, token, body, "application/json")
	if out != nil && len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, out), string(raw))
	}
	return status
}

type filePart struct {
	name, mime, data string
}

func multipartBody(t *testing.T, parts ...filePart) (io.Reader, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, p := range parts {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="file"; filename="`+p.name+`"`)
		hdr.Set("Content-Type", p.mime)
		w, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = w.Write([]byte(p.data))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (a *testAPI) createArticle(t *testing.T, title string) ArticleResponse {
	t.Helper()
	var art ArticleResponse
	status := a.doJSON(t, http.MethodPost, "/articles", a.admin, CreateArticleRequest{Title: title}, &art)
	require.Equal(t, http.StatusCreated, status)
	return art
}

func (a *testAPI) waitUploads(t *testing.T, sid string) SessionResponse {
	t.Helper()
	var snap SessionResponse
	require.Eventually(t, func() bool {
		snap = SessionResponse{}
		status := a.doJSON(t, http.MethodGet, "/sessions/"+sid, a.admin, nil, &snap)
		return status == http.StatusOK && snap.Pending == 0
	}, 2*time.Second, 10*time.Millisecond)
	return snap
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	var out map[string]string
	status := api.doJSON(t, http.MethodGet, "/health", "", nil, &out)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "ok", out["status"])

	status, raw := api.do(t, http.MethodGet, "/metrics", "", nil, "")
	require.Equal(t, http.StatusOK, status)
	require.Contains(t, string(raw), "holograma_articles_requests_total")
}

func TestArticles_CreateRequiresAdmin(t *testing.T) {
	api := newTestAPI(t)

	status := api.doJSON(t, http.MethodPost, "/articles", "", CreateArticleRequest{Title: "x"}, nil)
	require.Equal(t, http.StatusUnauthorized, status)

	status = api.doJSON(t, http.MethodPost, "/articles", api.reader, CreateArticleRequest{Title: "x"}, nil)
	require.Equal(t, http.StatusForbidden, status)

	status = api.doJSON(t, http.MethodPost, "/articles", api.admin, CreateArticleRequest{Title: ""}, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestArticles_CRUD(t *testing.T) {
	api := newTestAPI(t)
	created := api.createArticle(t, "Prism")
	require.Equal(t, "admin-1", created.AuthorUID)
	require.Empty(t, created.Images)

	var got ArticleResponse
	status := api.doJSON(t, http.MethodGet, "/articles/"+strconv.FormatInt(created.ID, 10), "", nil, &got)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Prism", got.Title)
	require.NotNil(t, got.Videos)

	content := "new body"
	status = api.doJSON(t, http.MethodPatch, "/articles/"+strconv.FormatInt(created.ID, 10), api.admin,
		models.ArticleUpdate{Content: &content}, &got)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "new body", got.Content)
	require.Equal(t, "Prism", got.Title)

	var list []ArticleResponse
	status = api.doJSON(t, http.MethodGet, "/articles?limit=5", "", nil, &list)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, list, 1)

	status = api.doJSON(t, http.MethodGet, "/articles/999", "", nil, nil)
	require.Equal(t, http.StatusNotFound, status)
	status = api.doJSON(t, http.MethodGet, "/articles/abc", "", nil, nil)
	require.Equal(t, http.StatusBadRequest, status)
	status = api.doJSON(t, http.MethodGet, "/articles?limit=x", "", nil, nil)
	require.Equal(t, http.StatusBadRequest, status)
}

func TestSession_FullEditFlow(t *testing.T) {
	api := newTestAPI(t)
	art := api.createArticle(t, "Gallery")
	articlePath := "/articles/" + strconv.FormatInt(art.ID, 10)

	var sess SessionResponse
	status := api.doJSON(t, http.MethodPost, articlePath+"/sessions", api.admin, nil, &sess)
	require.Equal(t, http.StatusCreated, status)
	require.Empty(t, sess.Items)
	sid := sess.ID.String()

	// second session on the same article
	status = api.doJSON(t, http.MethodPost, articlePath+"/sessions", api.admin, nil, nil)
	require.Equal(t, http.StatusConflict, status)

	body, ct := multipartBody(t,
		filePart{name: "a.png", mime: "image/png", data: "a.png"},
		filePart{name: "b.mp4", mime: "video/mp4", data: "b.mp4"},
		filePart{name: "c.bin", mime: "application/pdf", data: "c.pdf"},
	)
	status, raw := api.do(t, http.MethodPost, "/sessions/"+sid+"/files", api.admin, body, ct)
	require.Equal(t, http.StatusAccepted, status, string(raw))
	var added AddFilesResponse
	require.NoError(t, json.Unmarshal(raw, &added))
	require.Len(t, added.IDs, 3)

	snap := api.waitUploads(t, sid)
	require.Len(t, snap.Items, 3)
	require.Equal(t, models.Audio, snap.Items[2].Kind)
	for _, it := range snap.Items {
		require.Equal(t, models.UploadedState, it.UploadState)
	}

	// invalid reorder leaves everything untouched
	status = api.doJSON(t, http.MethodPut, "/sessions/"+sid+"/order", api.admin,
		ReorderRequest{IDs: added.IDs[:2]}, nil)
	require.Equal(t, http.StatusBadRequest, status)

	reordered := []string{added.IDs[2], added.IDs[0], added.IDs[1]}
	status = api.doJSON(t, http.MethodPut, "/sessions/"+sid+"/order", api.admin, ReorderRequest{IDs: reordered}, &snap)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, added.IDs[2], snap.Items[0].ID)

	var payload models.CommitPayload
	status = api.doJSON(t, http.MethodGet, "/sessions/"+sid+"/payload", api.admin, nil, &payload)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, payload.NewlyUploaded, 3)
	require.Equal(t, "https://cdn.test/c.pdf", payload.NewlyUploaded[0].URL)

	var committed CommitResponse
	status = api.doJSON(t, http.MethodPost, "/sessions/"+sid+"/commit", api.admin, nil, &committed)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, committed.Session.Items, 3)
	for _, it := range committed.Session.Items {
		require.Equal(t, models.OriginExisting, it.Origin)
	}

	var stored ArticleResponse
	status = api.doJSON(t, http.MethodGet, articlePath, "", nil, &stored)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []string{"https://cdn.test/a.png"}, stored.Images)
	require.Equal(t, []string{"https://cdn.test/b.mp4"}, stored.Videos)
	require.Equal(t, []string{"https://cdn.test/c.pdf"}, stored.Audios)

	// remove a stored item and commit again
	victim := committed.Session.Items[1].ID
	status = api.doJSON(t, http.MethodDelete, "/sessions/"+sid+"/items/"+victim, api.admin, nil, &snap)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []string{victim}, snap.PendingDeletionIDs)

	status = api.doJSON(t, http.MethodPost, "/sessions/"+sid+"/commit", api.admin, nil, &committed)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, []string{victim}, committed.Payload.DeletedIDs)

	status = api.doJSON(t, http.MethodGet, articlePath, "", nil, &stored)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, stored.Images)
	require.Len(t, stored.Media, 2)

	status = api.doJSON(t, http.MethodDelete, "/sessions/"+sid, api.admin, nil, nil)
	require.Equal(t, http.StatusNoContent, status)
	status = api.doJSON(t, http.MethodGet, "/sessions/"+sid, api.admin, nil, nil)
	require.Equal(t, http.StatusNotFound, status)
}

func TestSession_FailedUploadBlocksCommit(t *testing.T) {
	api := newTestAPI(t)
	art := api.createArticle(t, "Broken")

	var sess SessionResponse
	status := api.doJSON(t, http.MethodPost, "/articles/"+strconv.FormatInt(art.ID, 10)+"/sessions", api.admin, nil, &sess)
	require.Equal(t, http.StatusCreated, status)
	sid := sess.ID.String()

	body, ct := multipartBody(t, filePart{name: "x.png", mime: "image/png", data: "fail-me"})
	status, raw := api.do(t, http.MethodPost, "/sessions/"+sid+"/files", api.admin, body, ct)
	require.Equal(t, http.StatusAccepted, status, string(raw))

	snap := api.waitUploads(t, sid)
	require.Equal(t, 1, snap.Failed)
	require.Equal(t, models.FailedState, snap.Items[0].UploadState)

	status = api.doJSON(t, http.MethodPost, "/sessions/"+sid+"/commit", api.admin, nil, nil)
	require.Equal(t, http.StatusConflict, status)

	// dropping the failed item unblocks the commit
	status = api.doJSON(t, http.MethodDelete, "/sessions/"+sid+"/items/"+snap.Items[0].ID, api.admin, nil, &snap)
	require.Equal(t, http.StatusOK, status)
	require.Empty(t, snap.Items)
	require.Empty(t, snap.PendingDeletionIDs)

	status = api.doJSON(t, http.MethodPost, "/sessions/"+sid+"/commit", api.admin, nil, nil)
	require.Equal(t, http.StatusOK, status)
}

func TestSession_Access(t *testing.T) {
	api := newTestAPI(t)
	art := api.createArticle(t, "Private")

	status := api.doJSON(t, http.MethodPost, "/articles/"+strconv.FormatInt(art.ID, 10)+"/sessions", api.reader, nil, nil)
	require.Equal(t, http.StatusForbidden, status)

	status = api.doJSON(t, http.MethodGet, "/sessions/not-a-uuid", api.admin, nil, nil)
	require.Equal(t, http.StatusBadRequest, status)

	status = api.doJSON(t, http.MethodPost, "/articles/999/sessions", api.admin, nil, nil)
	require.Equal(t, http.StatusNotFound, status)

	var sess SessionResponse
	status = api.doJSON(t, http.MethodPost, "/articles/"+strconv.FormatInt(art.ID, 10)+"/sessions", api.admin, nil, &sess)
	require.Equal(t, http.StatusCreated, status)

	status = api.doJSON(t, http.MethodGet, "/sessions/"+sess.ID.String(), api.reader, nil, nil)
	require.Equal(t, http.StatusForbidden, status)

	status, raw := api.do(t, http.MethodPost, "/sessions/"+sess.ID.String()+"/files", api.admin,
		strings.NewReader("not multipart"), "text/plain")
	require.Equal(t, http.StatusBadRequest, status, string(raw))
}

func TestWriteError_Mapping(t *testing.T) {
	h := New(nil, 0, zerolog.Nop())

	tests := []struct {
		err  error
		want int
	}{
		{models.ErrInvalidArgument, http.StatusBadRequest},
		{models.ErrInvalidReorder, http.StatusBadRequest},
		{models.ErrUnauthorized, http.StatusUnauthorized},
		{models.ErrForbidden, http.StatusForbidden},
		{models.ErrNotFound, http.StatusNotFound},
		{models.ErrConflict, http.StatusConflict},
		{models.ErrUploadsPending, http.StatusConflict},
		{models.ErrUploadsFailed, http.StatusConflict},
		{models.ErrSessionClosed, http.StatusGone},
		{models.ErrPersistence, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeError(rec, tt.err)
			require.Equal(t, tt.want, rec.Code)
		})
	}
}
