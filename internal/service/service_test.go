package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"

	"github.com/UnendingLoop/ImageVariations/internal/model"
	"github.com/stretchr/testify/require"
	"github.com/wb-go/wbf/retry"
)

func validPNGUpload(t *testing.T) *model.UploadData {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1, 1))))

	return &model.UploadData{
		File:        &fakeMultipartFile{bytes.NewReader(buf.Bytes())},
		Filename:    "cat.png",
		ContentType: model.PNG,
		Size:        int64(buf.Len()),
	}
}

// UPLOAD - SUCCESS
func TestImageService_Upload_OK(t *testing.T) {
	ctx := context.Background()

	repo := &mockRepo{
		createFn: func(ctx context.Context, img *model.Image) error {
			require.Equal(t, int64(7), img.UserID)
			require.Equal(t, "cat.png", img.Filename)
			require.Equal(t, model.PNG, img.MimeType)
			require.True(t, strings.HasPrefix(img.URL, "stored://"+model.SrcKeyPrefix))
			img.ID = 42
			return nil
		},
	}

	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			require.True(t, strings.HasPrefix(key, model.SrcKeyPrefix))
			require.Equal(t, model.PNG, ct)
			return nil
		},
	}

	svc := ImageService{repo: repo, storage: storage}

	img, err := svc.Upload(ctx, model.User{ID: 7}, validPNGUpload(t))
	require.NoError(t, err)
	require.Equal(t, int64(42), img.ID)
}

// UPLOAD - TOO LARGE
func TestImageService_Upload_TooLarge(t *testing.T) {
	svc := ImageService{}

	data := validPNGUpload(t)
	data.Size = model.MaxUploadSize + 1

	_, err := svc.Upload(context.Background(), model.User{ID: 7}, data)
	require.ErrorIs(t, err, model.ErrImageTooLarge)
}

// UPLOAD - UNSUPPORTED DECLARED TYPE
func TestImageService_Upload_BadDeclaredType(t *testing.T) {
	svc := ImageService{}

	data := validPNGUpload(t)
	data.ContentType = "image/webp"

	_, err := svc.Upload(context.Background(), model.User{ID: 7}, data)
	require.ErrorIs(t, err, model.ErrUnsupportedType)
}

// UPLOAD - NOT AN IMAGE AT ALL
func TestImageService_Upload_NotDecodable(t *testing.T) {
	svc := ImageService{}

	data := &model.UploadData{
		File:        &fakeMultipartFile{bytes.NewReader([]byte("definitely not a png"))},
		Filename:    "fake.png",
		ContentType: model.PNG,
		Size:        20,
	}

	_, err := svc.Upload(context.Background(), model.User{ID: 7}, data)
	require.ErrorIs(t, err, model.ErrUnsupportedType)
}

// UPLOAD - STORAGE PUT FAIL
func TestImageService_Upload_StorageError(t *testing.T) {
	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			return errors.New("storage is down")
		},
	}

	repo := &mockRepo{
		createFn: func(ctx context.Context, img *model.Image) error {
			t.Fatal("no row must be written when storage put failed")
			return nil
		},
	}

	svc := ImageService{repo: repo, storage: storage}

	_, err := svc.Upload(context.Background(), model.User{ID: 7}, validPNGUpload(t))
	require.ErrorIs(t, err, model.ErrCommon500)
}

// GENERATE - SUCCESS - N URLS IN, N ROWS OUT, SAME ORDER
func TestImageService_GenerateVariations_OK(t *testing.T) {
	upstream := []string{"http://gen/1.png", "http://gen/2.png", "http://gen/3.png"}

	var fetched []string
	var batch []model.Image

	repo := &mockRepo{
		getFn: func(ctx context.Context, id int64) (*model.Image, error) {
			require.Equal(t, int64(1), id)
			return &model.Image{ID: 1, URL: "http://minio/images/src.png"}, nil
		},
		createBatchFn: func(ctx context.Context, b []model.Image) error {
			batch = b
			return nil
		},
	}

	gen := &mockGenerator{
		generateFn: func(ctx context.Context, prompt string, n int, size string) ([]string, error) {
			require.Contains(t, prompt, "http://minio/images/src.png")
			require.Equal(t, VariationCount, n)
			require.Equal(t, VariationSize, size)
			return upstream, nil
		},
	}

	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, url string) ([]byte, string, error) {
			fetched = append(fetched, url)
			return []byte("img-bytes"), model.PNG, nil
		},
	}

	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			require.True(t, strings.HasPrefix(key, model.GenKeyPrefix))
			return nil
		},
	}

	svc := ImageService{repo: repo, storage: storage, generator: gen, fetcher: fetcher}

	res, err := svc.GenerateVariations(context.Background(), 1, 7)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Variations, len(upstream))
	require.Len(t, batch, len(upstream))
	require.Equal(t, upstream, fetched) // порядок обхода = порядок ответа апстрима
	for i, img := range batch {
		require.Equal(t, int64(7), img.UserID)
		require.Equal(t, model.PNG, img.MimeType)
		require.Equal(t, res.Variations[i], img.URL)
	}
}

// GENERATE - BILLING LIMIT - SOFT SUCCESS + ONE ENQUEUE
func TestImageService_GenerateVariations_BillingFallback(t *testing.T) {
	sends := 0
	var task model.MockTask

	repo := &mockRepo{
		getFn: func(ctx context.Context, id int64) (*model.Image, error) {
			return &model.Image{ID: 1, URL: "http://minio/images/src.png"}, nil
		},
		createBatchFn: func(ctx context.Context, b []model.Image) error {
			t.Fatal("no rows must be written on billing fallback")
			return nil
		},
	}

	gen := &mockGenerator{
		generateFn: func(ctx context.Context, prompt string, n int, size string) ([]string, error) {
			return nil, fmt.Errorf("%w: contact support", model.ErrBillingLimit)
		},
	}

	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			sends++
			require.Equal(t, "7", string(key))
			require.NoError(t, json.Unmarshal(v, &task))
			return nil
		},
	}

	svc := ImageService{repo: repo, publisher: pub, generator: gen}

	res, err := svc.GenerateVariations(context.Background(), 1, 7)
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Empty(t, res.Variations)
	require.NotEmpty(t, res.Message)
	require.Equal(t, 1, sends)
	require.Equal(t, model.MockTask{UserID: 7, Count: model.FallbackCount}, task)
}

// GENERATE - GENERIC UPSTREAM FAILURE IS A HARD ERROR
func TestImageService_GenerateVariations_UpstreamError(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id int64) (*model.Image, error) {
			return &model.Image{ID: 1, URL: "u"}, nil
		},
	}

	gen := &mockGenerator{
		generateFn: func(ctx context.Context, prompt string, n int, size string) ([]string, error) {
			return nil, fmt.Errorf("%w: rate limited", model.ErrUpstreamFailed)
		},
	}

	pub := &mockPublisher{
		sendFn: func(ctx context.Context, s retry.Strategy, key []byte, v []byte) error {
			t.Fatal("fallback must not be queued for non-billing errors")
			return nil
		},
	}

	svc := ImageService{repo: repo, publisher: pub, generator: gen}

	_, err := svc.GenerateVariations(context.Background(), 1, 7)
	require.ErrorIs(t, err, model.ErrUpstreamFailed)
}

// GENERATE - SINGLE ITEM FETCH FAILURE ABORTS THE WHOLE CALL
func TestImageService_GenerateVariations_ItemFailureAborts(t *testing.T) {
	calls := 0

	repo := &mockRepo{
		getFn: func(ctx context.Context, id int64) (*model.Image, error) {
			return &model.Image{ID: 1, URL: "u"}, nil
		},
		createBatchFn: func(ctx context.Context, b []model.Image) error {
			t.Fatal("no partial persistence on the synchronous path")
			return nil
		},
	}

	gen := &mockGenerator{
		generateFn: func(ctx context.Context, prompt string, n int, size string) ([]string, error) {
			return []string{"http://gen/1.png", "http://gen/2.png"}, nil
		},
	}

	fetcher := &mockFetcher{
		fetchFn: func(ctx context.Context, url string) ([]byte, string, error) {
			calls++
			if calls == 2 {
				return nil, "", errors.New("cdn down")
			}
			return []byte("img"), model.PNG, nil
		},
	}

	storage := &mockStorage{
		putFn: func(ctx context.Context, key string, size int64, ct string, r io.Reader) error {
			return nil
		},
	}

	svc := ImageService{repo: repo, storage: storage, generator: gen, fetcher: fetcher}

	_, err := svc.GenerateVariations(context.Background(), 1, 7)
	require.ErrorIs(t, err, model.ErrFetchFailed)
	require.Equal(t, 2, calls)
}

// GENERATE - SOURCE NOT FOUND
func TestImageService_GenerateVariations_NotFound(t *testing.T) {
	repo := &mockRepo{
		getFn: func(ctx context.Context, id int64) (*model.Image, error) {
			return nil, model.ErrImageNotFound
		},
	}

	svc := ImageService{repo: repo}

	_, err := svc.GenerateVariations(context.Background(), 404, 7)
	require.ErrorIs(t, err, model.ErrImageNotFound)
}

// LIST - DEFAULTS + OWNERSHIP FILTER
func TestImageService_ListUserImages_OK(t *testing.T) {
	repo := &mockRepo{
		listByUserFn: func(ctx context.Context, userID int64, req *model.ListRequest) ([]model.ImageSummary, error) {
			require.Equal(t, int64(7), userID)
			require.Equal(t, 1, req.Page)
			require.Equal(t, 30, req.Limit)
			return []model.ImageSummary{{ID: 1, Filename: "a.png", URL: "u"}}, nil
		},
	}

	svc := ImageService{repo: repo}

	res, err := svc.ListUserImages(context.Background(), 7, &model.ListRequest{})
	require.NoError(t, err)
	require.Len(t, res, 1)
}

// LIST - DB FAILURE
func TestImageService_ListUserImages_DBError(t *testing.T) {
	repo := &mockRepo{
		listByUserFn: func(ctx context.Context, userID int64, req *model.ListRequest) ([]model.ImageSummary, error) {
			return nil, errors.New("db down")
		},
	}

	svc := ImageService{repo: repo}

	_, err := svc.ListUserImages(context.Background(), 7, &model.ListRequest{})
	require.ErrorIs(t, err, model.ErrCommon500)
}
