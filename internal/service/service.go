// Package service provides business-logic for the app
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/UnendingLoop/ImageVariations/internal/model"
	"github.com/UnendingLoop/ImageVariations/internal/mwlogger"
	"github.com/UnendingLoop/ImageVariations/internal/repository"
	"github.com/google/uuid"
	"github.com/wb-go/wbf/retry"
)

// Параметры запроса вариаций - фиксированы, как у исходной системы
const (
	VariationCount = 5
	VariationSize  = "1024x1024"
)

// variationPolicy - синхронный путь НЕ терпит частичных падений: первый
// упавший элемент валит весь вызов. Фоновый mock-путь живет по
// противоположной политике (см. internal/worker).
const variationPolicy = model.AbortOnItemFailure

const billingFallbackMessage = "Billing hard limit has been reached for the configured API key. " +
	"Mocked images generation has been queued as a fallback."

type ImageService struct {
	repo      repository.ImageRepo
	publisher TaskPublisher
	storage   ImageStorage
	generator VariationGenerator
	fetcher   RemoteFetcher
}

func NewImageService(repo repository.ImageRepo, pub TaskPublisher, strg ImageStorage, gen VariationGenerator, f RemoteFetcher) *ImageService {
	return &ImageService{
		repo:      repo,
		publisher: pub,
		storage:   strg,
		generator: gen,
		fetcher:   f,
	}
}

// TaskPublisher - контракт для работы с очередью
type TaskPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

// ImageStorage - контракт для работы с хранилищем
type ImageStorage interface {
	Put(ctx context.Context, key string, size int64, contentType string, r io.Reader) error
	URL(key string) string
}

// VariationGenerator - контракт генерационного сервиса; биллинг-лимит
// приходит как model.ErrBillingLimit
type VariationGenerator interface {
	Generate(ctx context.Context, prompt string, n int, size string) ([]string, error)
}

// RemoteFetcher - контракт скачивания байтов по URL
type RemoteFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// Стратегия ретрая отправки в очередь - можно потом вынести значения в конфиг/env
var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

// Upload валидирует и сохраняет картинку: сначала байты в хранилище,
// потом строка в БД - никогда наоборот
func (c ImageService) Upload(ctx context.Context, user model.User, data *model.UploadData) (*model.Image, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	raw, ctype, err := validateUpload(data)
	if err != nil {
		return nil, err
	}

	key := model.SrcKeyPrefix + uuid.New().String() + model.GetImageFileExt[ctype]
	if err := c.storage.Put(ctx, key, int64(len(raw)), ctype, bytes.NewReader(raw)); err != nil {
		logger.Error().Err(err).Msg("Failed to save uploaded image in Storage")
		return nil, model.ErrCommon500
	}

	newImage := &model.Image{
		Filename: data.Filename,
		UserID:   user.ID,
		URL:      c.storage.URL(key),
		MimeType: ctype,
	}

	if err := c.repo.Create(ctx, newImage); err != nil {
		logger.Error().Err(err).Msg("Failed to create image in DB")
		return nil, model.ErrCommon500
	}

	return newImage, nil
}

// GenerateVariations запрашивает вариации у генерационного сервиса и
// зеркалирует каждую в собственное хранилище. Биллинг-лимит - не ошибка:
// ставится фоновая задача на mock-картинки и отдается мягкий успех.
func (c ImageService) GenerateVariations(ctx context.Context, imageID int64, userID int64) (*model.VariationResult, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	src, err := c.repo.Get(ctx, imageID)
	if err != nil {
		if errors.Is(err, model.ErrImageNotFound) {
			return nil, err
		}
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to fetch image %d from DB", imageID))
		return nil, model.ErrCommon500
	}

	prompt := "Generate variations of this image: " + src.URL
	urls, err := c.generator.Generate(ctx, prompt, VariationCount, VariationSize)
	if err != nil {
		if errors.Is(err, model.ErrBillingLimit) {
			logger.Warn().Err(err).Msg("Billing limit reached, queueing mock generation fallback")
			if err := c.enqueueMockTask(ctx, userID, model.FallbackCount); err != nil {
				logger.Error().Err(err).Msg("Failed to publish mock-generation task to queue")
				return nil, model.ErrCommon500
			}
			return &model.VariationResult{
				Success:    true,
				Variations: []string{},
				Message:    billingFallbackMessage,
			}, nil
		}
		logger.Error().Err(err).Msg("Image variation generation failed")
		return nil, err
	}

	batch := make([]model.Image, 0, len(urls))
	stored := make([]string, 0, len(urls))
	for _, u := range urls {
		img, err := c.mirrorVariation(ctx, u, userID)
		if err != nil {
			if variationPolicy == model.ContinueOnItemFailure {
				logger.Error().Err(err).Msg("Skipping failed variation item")
				continue
			}
			return nil, err
		}
		batch = append(batch, *img)
		stored = append(stored, img.URL)
	}

	if err := c.repo.CreateBatch(ctx, batch); err != nil {
		logger.Error().Err(err).Msg("Failed to bulk-insert generated images in DB")
		return nil, model.ErrCommon500
	}

	return &model.VariationResult{
		Success:    true,
		Variations: stored,
		Message:    "Image variations generated and stored successfully.",
	}, nil
}

// mirrorVariation скачивает один сгенерированный URL и кладет байты под свой ключ
func (c ImageService) mirrorVariation(ctx context.Context, srcURL string, userID int64) (*model.Image, error) {
	logger := mwlogger.LoggerFromContext(ctx)

	raw, _, err := c.fetcher.Fetch(ctx, srcURL)
	if err != nil {
		logger.Error().Err(err).Msg(fmt.Sprintf("Failed to download generated image from %q", srcURL))
		return nil, fmt.Errorf("%w: %v", model.ErrFetchFailed, err)
	}

	filename := "generated_" + uuid.New().String() + ".png"
	key := model.GenKeyPrefix + filename
	if err := c.storage.Put(ctx, key, int64(len(raw)), model.PNG, bytes.NewReader(raw)); err != nil {
		logger.Error().Err(err).Msg("Failed to save generated image in Storage")
		return nil, model.ErrCommon500
	}

	return &model.Image{
		Filename: filename,
		UserID:   userID,
		URL:      c.storage.URL(key),
		MimeType: model.PNG,
	}, nil
}

func (c ImageService) enqueueMockTask(ctx context.Context, userID int64, count int) error {
	// владелец уезжает в payload задачи - воркер не знает о контексте запроса
	payload, err := json.Marshal(model.MockTask{UserID: userID, Count: count})
	if err != nil {
		return err
	}
	key := strconv.FormatInt(userID, 10)
	return c.publisher.SendWithRetry(ctx, retryStrategy, []byte(key), payload)
}

// ListUserImages возвращает картинки вызывающего постранично
func (c ImageService) ListUserImages(ctx context.Context, userID int64, req *model.ListRequest) ([]model.ImageSummary, error) {
	logger := mwlogger.LoggerFromContext(ctx)
	validateQueryParams(req)

	res, err := c.repo.ListByUser(ctx, userID, req)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch user images list from DB")
		return nil, model.ErrCommon500
	}

	return res, nil
}
