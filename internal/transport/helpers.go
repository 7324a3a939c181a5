package transport

import (
	"errors"
	"io"
	"log"

	"github.com/UnendingLoop/ImageVariations/internal/model"
)

func errorCodeDefiner(err error) int {
	switch {
	case errors.Is(err, model.ErrCommon500):
		return 500
	case errors.Is(err, model.ErrImageNotFound):
		return 404
	case errors.Is(err, model.ErrUnauthorized):
		return 401
	case errors.Is(err, model.ErrIncorrectID),
		errors.Is(err, model.ErrEmptySource),
		errors.Is(err, model.ErrImageTooLarge),
		errors.Is(err, model.ErrUnsupportedType):
		return 400
	default:
		return 500
	}
}

func closeFileFlow(res io.ReadCloser) {
	if res == nil {
		return
	}
	if err := res.Close(); err != nil {
		log.Println("Handler failed to close fileflow:", err)
	}
}
