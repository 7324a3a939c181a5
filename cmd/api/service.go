package main

import (
	"context"

	"github.com/UnendingLoop/ImageVariations/internal/model"
)

type ImageAPIService interface {
	Upload(ctx context.Context, user model.User, data *model.UploadData) (*model.Image, error)
	GenerateVariations(ctx context.Context, imageID int64, userID int64) (*model.VariationResult, error)
	ListUserImages(ctx context.Context, userID int64, req *model.ListRequest) ([]model.ImageSummary, error)
}
