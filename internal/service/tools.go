package service

import (
	"bytes"
	"image"
	"io"

	// регистрация декодеров для image.DecodeConfig
	_ "image/jpeg"
	_ "image/png"

	"github.com/UnendingLoop/ImageVariations/internal/model"
	"github.com/disintegration/imaging"
)

func validateQueryParams(req *model.ListRequest) {
	// Обрабатываем пустые значения, присваиваем дефолты если надо
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Limit <= 0 || req.Limit > 100 {
		req.Limit = 30
	}
}

// validateUpload проверяет размер и тип аплоада и возвращает байты
// вместе с нормализованным content-type. Заявленному заголовку не верим -
// формат определяется по самим байтам.
func validateUpload(data *model.UploadData) ([]byte, string, error) {
	if data == nil || data.File == nil || data.Size <= 0 {
		return nil, "", model.ErrEmptySource
	}
	if data.Size > model.MaxUploadSize {
		return nil, "", model.ErrImageTooLarge
	}
	if !model.InImageTypeMap[data.ContentType] {
		return nil, "", model.ErrUnsupportedType
	}

	raw, err := io.ReadAll(io.LimitReader(data.File, model.MaxUploadSize+1))
	if err != nil {
		return nil, "", model.ErrEmptySource
	}
	if len(raw) > model.MaxUploadSize {
		return nil, "", model.ErrImageTooLarge
	}

	_, f, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", model.ErrUnsupportedType
	}

	format, err := imaging.FormatFromExtension(f)
	if err != nil {
		return nil, "", model.ErrUnsupportedType
	}

	ctype, ok := model.GetCType[format]
	if !ok {
		return nil, "", model.ErrUnsupportedType
	}

	return raw, ctype, nil
}
