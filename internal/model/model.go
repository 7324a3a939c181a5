// Package model provides data-structs for internal app-usage
package model

import (
	"errors"
	"mime/multipart"
	"time"

	"github.com/disintegration/imaging"
)

// Image - единственная персистентная сущность: строка в user_images
type Image struct {
	ID        int64      `json:"id"`
	Filename  string     `json:"filename"`
	UserID    int64      `json:"user_id"`
	URL       string     `json:"url"`
	MimeType  string     `json:"mime_type"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// ImageSummary - урезанный вид для листинга
type ImageSummary struct {
	ID       int64  `json:"id"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// User - идентичность вызывающего, кладется в контекст auth-мидлварью
type User struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

//-------------------

// UploadData - сырые данные аплоада из multipart-формы
type UploadData struct {
	File        multipart.File
	Filename    string
	ContentType string
	Size        int64
}

// VariationResult - ответ операции генерации вариаций
type VariationResult struct {
	Success    bool     `json:"success"`
	Variations []string `json:"variations"`
	Message    string   `json:"message"`
}

// MockTask - payload фоновой задачи в очереди; владелец едет внутри задачи,
// а не берется из окружения воркера
type MockTask struct {
	UserID int64 `json:"user_id"`
	Count  int   `json:"count"`
}

// ProgressEvent - данные одного прогресс-события фоновой генерации
type ProgressEvent struct {
	Filename string  `json:"filename"`
	UserID   int64   `json:"user_id"`
	URL      string  `json:"url"`
	MimeType string  `json:"mime_type"`
	Progress float64 `json:"progress"`
}

// ProgressEnvelope - то, что реально едет по progress-топику и в websocket
type ProgressEnvelope struct {
	Channel string        `json:"channel"`
	Event   string        `json:"event"`
	Data    ProgressEvent `json:"data"`
}

// ProgressEventName - имя события для подписчиков
const ProgressEventName = "image.generated"

//-------------------

// ItemFailurePolicy - явная политика поведения цикла при падении одного элемента
type ItemFailurePolicy int

const (
	// AbortOnItemFailure - первый упавший элемент валит всю операцию
	AbortOnItemFailure ItemFailurePolicy = iota
	// ContinueOnItemFailure - упавший элемент логируется и пропускается
	ContinueOnItemFailure
)

//-------------------

var (
	ErrCommon500        error = errors.New("something went wrong. Try again later")   // 500
	ErrIncorrectID      error = errors.New("incorrect image ID")                      // 400
	ErrImageNotFound    error = errors.New("specified image ID doesn't exist")        // 404
	ErrEmptySource      error = errors.New("empty/incorrect source image provided")   // 400
	ErrImageTooLarge    error = errors.New("image exceeds the maximum allowed size")  // 400
	ErrUnsupportedType  error = errors.New("unsupported image type")                  // 400
	ErrUnauthorized     error = errors.New("authentication required")                 // 401
	ErrBillingLimit     error = errors.New("billing hard limit has been reached")     // soft-success + fallback
	ErrUpstreamFailed   error = errors.New("image generation service request failed") // 500
	ErrFetchFailed      error = errors.New("failed to download generated image")      // 500
	ErrIncorrectPayload error = errors.New("malformed task payload")                  // worker-side
	ErrNothingGenerated error = errors.New("no images were generated successfully")   // worker-side
)

//-------------------

// MaxUploadSize - потолок размера аплоада, как у исходной системы (2 MiB)
const MaxUploadSize = 2 << 20

// FallbackCount - сколько mock-картинок просим при биллинг-фоллбэке
const FallbackCount = 5

const (
	JPEG = "image/jpeg"
	PNG  = "image/png"
)

var GetImageFileExt = map[string]string{
	JPEG: ".jpg",
	PNG:  ".png",
}

var InImageTypeMap = map[string]bool{
	JPEG: true,
	PNG:  true,
}

var GetCType = map[imaging.Format]string{
	imaging.JPEG: JPEG,
	imaging.PNG:  PNG,
}

//-------------------

// Префиксы ключей в объектном хранилище
const (
	SrcKeyPrefix    = "images/"
	GenKeyPrefix    = "images/generated/"
	MockedKeyPrefix = "images/mocked/"
)

//-------------------

// ListRequest - пагинация листинга картинок пользователя
type ListRequest struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}
