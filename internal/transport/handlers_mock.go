package transport

import (
	"context"

	"github.com/UnendingLoop/ImageVariations/internal/model"
)

// MOCK SERVICE

type mockService struct {
	uploadFn             func(ctx context.Context, user model.User, data *model.UploadData) (*model.Image, error)
	generateVariationsFn func(ctx context.Context, imageID int64, userID int64) (*model.VariationResult, error)
	listUserImagesFn     func(ctx context.Context, userID int64, req *model.ListRequest) ([]model.ImageSummary, error)
}

func (m *mockService) Upload(ctx context.Context, user model.User, data *model.UploadData) (*model.Image, error) {
	return m.uploadFn(ctx, user, data)
}

func (m *mockService) GenerateVariations(ctx context.Context, imageID int64, userID int64) (*model.VariationResult, error) {
	return m.generateVariationsFn(ctx, imageID, userID)
}

func (m *mockService) ListUserImages(ctx context.Context, userID int64, req *model.ListRequest) ([]model.ImageSummary, error) {
	return m.listUserImagesFn(ctx, userID, req)
}
