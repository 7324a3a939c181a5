package service

import (
	"bytes"
	"context"
	"io"

	"github.com/UnendingLoop/ImageVariations/internal/model"
	"github.com/wb-go/wbf/retry"
)

// MOCK REPOSITORY

type mockRepo struct {
	createFn      func(ctx context.Context, img *model.Image) error
	createBatchFn func(ctx context.Context, batch []model.Image) error
	getFn         func(ctx context.Context, id int64) (*model.Image, error)
	listByUserFn  func(ctx context.Context, userID int64, req *model.ListRequest) ([]model.ImageSummary, error)
	hasRoleFn     func(ctx context.Context, userID int64, role string) (bool, error)
}

func (m *mockRepo) Create(ctx context.Context, img *model.Image) error {
	return m.createFn(ctx, img)
}

func (m *mockRepo) CreateBatch(ctx context.Context, batch []model.Image) error {
	return m.createBatchFn(ctx, batch)
}

func (m *mockRepo) Get(ctx context.Context, id int64) (*model.Image, error) {
	return m.getFn(ctx, id)
}

func (m *mockRepo) ListByUser(ctx context.Context, userID int64, req *model.ListRequest) ([]model.ImageSummary, error) {
	return m.listByUserFn(ctx, userID, req)
}

func (m *mockRepo) HasRole(ctx context.Context, userID int64, role string) (bool, error) {
	return m.hasRoleFn(ctx, userID, role)
}

// MOCK STORAGE

type mockStorage struct {
	putFn func(ctx context.Context, key string, size int64, ct string, r io.Reader) error
	urlFn func(key string) string
}

func (m *mockStorage) Put(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
	return m.putFn(ctx, key, size, ct, r)
}

func (m *mockStorage) URL(key string) string {
	if m.urlFn != nil {
		return m.urlFn(key)
	}
	return "stored://" + key
}

// MOCK PUBLISHER

type mockPublisher struct {
	sendFn func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error
}

func (m *mockPublisher) SendWithRetry(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
	return m.sendFn(ctx, s, key, v)
}

// MOCK GENERATOR

type mockGenerator struct {
	generateFn func(ctx context.Context, prompt string, n int, size string) ([]string, error)
}

func (m *mockGenerator) Generate(ctx context.Context, prompt string, n int, size string) ([]string, error) {
	return m.generateFn(ctx, prompt, n, size)
}

// MOCK FETCHER

type mockFetcher struct {
	fetchFn func(ctx context.Context, url string) ([]byte, string, error)
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	return m.fetchFn(ctx, url)
}

// MOCK для multipart.File
type fakeMultipartFile struct {
	*bytes.Reader
}

func (f *fakeMultipartFile) Close() error {
	return nil
}
