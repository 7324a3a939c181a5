package worker

import (
	"context"
	"io"

	"github.com/UnendingLoop/ImageVariations/internal/model"
)

// MOCK STORAGE

type mockStorage struct {
	putFn func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) URL(key string) string {
	return "stored://" + key
}

// MOCK REPO

type mockBatchRepo struct {
	createBatchFn func(ctx context.Context, batch []model.Image) error
}

func (m *mockBatchRepo) CreateBatch(ctx context.Context, batch []model.Image) error {
	return m.createBatchFn(ctx, batch)
}

// MOCK NOTIFIER

type mockNotifier struct {
	publishFn func(ctx context.Context, userID int64, event model.ProgressEvent) error
}

func (m *mockNotifier) Publish(ctx context.Context, userID int64, event model.ProgressEvent) error {
	return m.publishFn(ctx, userID, event)
}

// MOCK FETCHER

type mockFetcher struct {
	fetchFn func(ctx context.Context, url string) ([]byte, string, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	return m.fetchFn(ctx, url)
}
