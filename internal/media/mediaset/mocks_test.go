package mediaset

import (
	"context"
	"fmt"

	"github.com/stretchr/testify/mock"

	"github.com/romariotrain/holograma/internal/media/models"
)

type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) Upload(ctx context.Context, data []byte, mimeType string) (models.UploadResult, error) {
	args := m.Called(ctx, data, mimeType)
	return args.Get(0).(models.UploadResult), args.Error(1)
}

// DeletingUploaderMock also removes hosted objects.
type DeletingUploaderMock struct {
	UploaderMock
}

func (m *DeletingUploaderMock) Delete(ctx context.Context, publicID string) error {
	args := m.Called(ctx, publicID)
	return args.Error(0)
}

type StoreMock struct {
	mock.Mock
}

func (m *StoreMock) ApplyMediaCommit(ctx context.Context, articleID int64, payload models.CommitPayload) ([]models.StoredMedia, error) {
	args := m.Called(ctx, articleID, payload)
	if v := args.Get(0); v != nil {
		return v.([]models.StoredMedia), args.Error(1)
	}
	return nil, args.Error(1)
}

// gatedUploader blocks every upload until release is closed or the context ends.
type gatedUploader struct {
	started chan string
	release chan struct{}
}

func newGatedUploader() *gatedUploader {
	return &gatedUploader{
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (g *gatedUploader) Upload(ctx context.Context, data []byte, mimeType string) (models.UploadResult, error) {
	g.started <- string(data)
	select {
	case <-g.release:
		return models.UploadResult{URL: "https://cdn.test/" + string(data)}, nil
	case <-ctx.Done():
		return models.UploadResult{}, ctx.Err()
	}
}

// queue captures dispatched uploads so tests decide when they run.
type queue struct {
	fns []func()
}

func (q *queue) push(f func()) { q.fns = append(q.fns, f) }

func (q *queue) runAll() {
	fns := q.fns
	q.fns = nil
	for _, f := range fns {
		f()
	}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("tmp_n%d", n)
	}
}
