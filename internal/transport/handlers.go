// Package transport provides methods for processing requests from endpoints
package transport

import (
	"context"
	"strconv"

	"github.com/UnendingLoop/ImageVariations/internal/model"
	"github.com/UnendingLoop/ImageVariations/internal/mwauth"
	"github.com/wb-go/wbf/ginext"
)

type ImageHandler struct {
	service ImageService
}

type ImageService interface {
	Upload(ctx context.Context, user model.User, data *model.UploadData) (*model.Image, error)
	GenerateVariations(ctx context.Context, imageID int64, userID int64) (*model.VariationResult, error)
	ListUserImages(ctx context.Context, userID int64, req *model.ListRequest) ([]model.ImageSummary, error)
}

func NewImageHandler(svc ImageService) *ImageHandler {
	return &ImageHandler{
		service: svc,
	}
}

func (h ImageHandler) SimplePinger(ctx *ginext.Context) {
	ctx.JSON(200, map[string]string{"message": "pong"})
}

// User отдает идентичность вызывающего; поле role дописывает mwrole
func (h ImageHandler) User(ctx *ginext.Context) {
	user, ok := mwauth.UserFromContext(ctx.Request.Context())
	if !ok {
		ctx.JSON(401, map[string]string{"error": "unauthorized", "message": model.ErrUnauthorized.Error()})
		return
	}
	ctx.JSON(200, user)
}

func (h ImageHandler) Upload(ctx *ginext.Context) {
	user, ok := mwauth.UserFromContext(ctx.Request.Context())
	if !ok {
		ctx.JSON(401, map[string]string{"error": "unauthorized", "message": model.ErrUnauthorized.Error()})
		return
	}

	imageFile, imageHeader, err := ctx.Request.FormFile("image")
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "Image upload failed.", "message": "image is required"})
		return
	}
	defer closeFileFlow(imageFile)

	data := &model.UploadData{
		File:        imageFile,
		Filename:    imageHeader.Filename,
		ContentType: imageHeader.Header.Get("Content-Type"),
		Size:        imageHeader.Size,
	}

	res, err := h.service.Upload(ctx.Request.Context(), user, data)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": "Image upload failed.", "message": err.Error()})
		return
	}

	ctx.JSON(201, map[string]any{"image": res})
}

func (h ImageHandler) GenerateVariations(ctx *ginext.Context) {
	user, ok := mwauth.UserFromContext(ctx.Request.Context())
	if !ok {
		ctx.JSON(401, map[string]string{"error": "unauthorized", "message": model.ErrUnauthorized.Error()})
		return
	}

	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(400, map[string]string{"error": "Image variation generation failed.", "message": model.ErrIncorrectID.Error()})
		return
	}

	res, err := h.service.GenerateVariations(ctx.Request.Context(), id, user.ID)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]any{
			"success": false,
			"error":   "Image variation generation failed.",
			"message": err.Error(),
		})
		return
	}

	ctx.JSON(200, res)
}

func (h ImageHandler) UserImages(ctx *ginext.Context) {
	user, ok := mwauth.UserFromContext(ctx.Request.Context())
	if !ok {
		ctx.JSON(401, map[string]string{"error": "unauthorized", "message": model.ErrUnauthorized.Error()})
		return
	}

	var req model.ListRequest
	if err := ctx.ShouldBindQuery(&req); err != nil {
		ctx.JSON(400, map[string]string{"error": "bad request", "message": "failed to parse query-params"})
		return
	}

	res, err := h.service.ListUserImages(ctx.Request.Context(), user.ID, &req)
	if err != nil {
		ctx.JSON(errorCodeDefiner(err), map[string]string{"error": "Failed to list images.", "message": err.Error()})
		return
	}

	ctx.JSON(200, map[string]any{"images": res})
}
