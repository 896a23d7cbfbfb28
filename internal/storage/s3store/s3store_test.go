package s3store

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/romariotrain/holograma/internal/media/models"
)

type putRecorder struct {
	mu          sync.Mutex
	method      string
	path        string
	contentType string
	body        []byte
}

func (p *putRecorder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	p.mu.Lock()
	p.method = r.Method
	p.path = r.URL.Path
	p.contentType = r.Header.Get("Content-Type")
	p.body = body
	p.mu.Unlock()
	w.Header().Set("ETag", `"etag"`)
	w.WriteHeader(http.StatusOK)
}

func newTestStorage(t *testing.T, cfg Config) *Storage {
	t.Helper()
	s, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	s.clock = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	s.keyGen = func() string { return "obj" }
	return s
}

func TestUpload_PutsObject(t *testing.T) {
	rec := &putRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	s := newTestStorage(t, Config{
		Bucket:       "media",
		Region:       "us-east-1",
		Endpoint:     srv.URL,
		AccessKeyID:  "key",
		SecretKey:    "secret",
		UsePathStyle: true,
		KeyPrefix:    "articles",
	})

	res, err := s.Upload(context.Background(), []byte("ID3 fake audio"), "audio/mpeg")
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/media/articles/2024/01/02/obj.mp3", res.URL)
	require.Equal(t, models.Audio, res.Kind)
	require.Equal(t, "s3", res.Provider)
	require.Equal(t, "articles/2024/01/02/obj.mp3", res.PublicID)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, http.MethodPut, rec.method)
	require.Equal(t, "/media/articles/2024/01/02/obj.mp3", rec.path)
	require.Equal(t, "audio/mpeg", rec.contentType)
}

func TestDelete_RemovesObject(t *testing.T) {
	rec := &putRecorder{}
	srv := httptest.NewServer(rec)
	defer srv.Close()

	s := newTestStorage(t, Config{
		Bucket:       "media",
		Region:       "us-east-1",
		Endpoint:     srv.URL,
		AccessKeyID:  "key",
		SecretKey:    "secret",
		UsePathStyle: true,
	})

	require.NoError(t, s.Delete(context.Background(), "articles/2024/01/02/obj.mp3"))

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Equal(t, http.MethodDelete, rec.method)
	require.Equal(t, "/media/articles/2024/01/02/obj.mp3", rec.path)
}

func TestUpload_Disabled(t *testing.T) {
	s := newTestStorage(t, Config{Bucket: "media"})

	_, err := s.Upload(context.Background(), []byte("x"), "image/png")
	require.ErrorIs(t, err, errDisabled)
	require.ErrorIs(t, s.Delete(context.Background(), "k"), errDisabled)
	require.NoError(t, s.Health(context.Background()))
}

func TestObjectURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "public base url",
			cfg:  Config{Bucket: "b", PublicBaseURL: "https://cdn.example.com", Endpoint: "http://minio:9000"},
			want: "https://cdn.example.com/a/b%20c.png",
		},
		{
			name: "path style endpoint",
			cfg:  Config{Bucket: "b", Endpoint: "http://minio:9000", UsePathStyle: true},
			want: "http://minio:9000/b/a/b%20c.png",
		},
		{
			name: "virtual host endpoint",
			cfg:  Config{Bucket: "b", Endpoint: "https://storage.example.com"},
			want: "https://b.storage.example.com/a/b%20c.png",
		},
		{
			name: "aws",
			cfg:  Config{Bucket: "b", Region: "eu-west-1"},
			want: "https://b.s3.eu-west-1.amazonaws.com/a/b%20c.png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Storage{cfg: tt.cfg}
			got := s.objectURL("a/b c.png")
			require.Equal(t, tt.want, got)
		})
	}
}
