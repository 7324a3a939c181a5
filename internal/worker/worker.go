// Package worker contains the mock-image generator consumed from the task queue
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"

	"github.com/UnendingLoop/ImageVariations/internal/model"
	"github.com/UnendingLoop/ImageVariations/internal/service"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	wbfkafka "github.com/wb-go/wbf/kafka"
)

// mockPolicy - фоновый путь ТЕРПИТ частичные падения: упавший элемент
// логируется и пропускается, выжившие пишутся одной пачкой в конце.
// Синхронный путь вариаций живет по противоположной политике
// (см. internal/service).
const mockPolicy = model.ContinueOnItemFailure

// ProgressNotifier - контракт публикации прогресса; пейсинг - забота нотификатора
type ProgressNotifier interface {
	Publish(ctx context.Context, userID int64, event model.ProgressEvent) error
}

// BatchRepo - воркеру от базы нужен только bulk-insert
type BatchRepo interface {
	CreateBatch(ctx context.Context, batch []model.Image) error
}

type Worker struct {
	storage        service.ImageStorage
	repo           BatchRepo
	notifier       ProgressNotifier
	fetcher        service.RemoteFetcher
	queue          <-chan kafkago.Message
	consumer       *wbfkafka.Consumer
	placeholderURL string
}

func NewWorkerInstance(strg service.ImageStorage, repo BatchRepo, n ProgressNotifier, f service.RemoteFetcher, q <-chan kafkago.Message, cons *wbfkafka.Consumer, placeholderURL string) *Worker {
	return &Worker{storage: strg, repo: repo, notifier: n, fetcher: f, queue: q, consumer: cons, placeholderURL: placeholderURL}
}

func (w *Worker) StartWorker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-w.queue:
			if !ok {
				log.Println("Queue channel closed, stopping worker...")
				return
			}
			task, err := parseTask(msg.Value)
			if err != nil {
				// кривой payload ретраить бессмысленно - коммитим и едем дальше
				log.Printf("Dropping malformed task %q: %v", string(msg.Value), err)
			} else if err := w.RunTask(ctx, task); err != nil {
				log.Printf("Mock generation task for user %d failed: %v", task.UserID, err)
				continue
			}
			if err := w.consumer.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit queue-message: %v", err)
			}
		}
	}
}

func parseTask(raw []byte) (*model.MockTask, error) {
	var task model.MockTask
	if err := json.Unmarshal(raw, &task); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrIncorrectPayload, err)
	}
	if task.Count <= 0 {
		return nil, model.ErrIncorrectPayload
	}
	return &task, nil
}

// RunTask последовательно тянет count плейсхолдеров: скачал - положил в
// хранилище - отправил прогресс. Строки копятся и пишутся в БД одним
// bulk-insert после цикла, частичный результат - норма для этого пути.
func (w *Worker) RunTask(ctx context.Context, task *model.MockTask) error {
	pending := make([]model.Image, 0, task.Count)

	for i := 1; i <= task.Count; i++ {
		img, err := w.mockOne(ctx, task.UserID)
		if err != nil {
			log.Printf("Mock item %d/%d for user %d failed: %v", i, task.Count, task.UserID, err)
			if mockPolicy == model.AbortOnItemFailure {
				return err
			}
			continue
		}

		pending = append(pending, *img)

		event := model.ProgressEvent{
			Filename: img.Filename,
			UserID:   img.UserID,
			URL:      img.URL,
			MimeType: img.MimeType,
			Progress: float64(i) / float64(task.Count) * 100,
		}
		// fire-and-forget: недоставленный прогресс не влияет на результат
		if err := w.notifier.Publish(ctx, task.UserID, event); err != nil {
			log.Printf("Failed to publish progress for user %d: %v", task.UserID, err)
		}
	}

	if len(pending) == 0 {
		log.Printf("WARNING: %v for user %d", model.ErrNothingGenerated, task.UserID)
		return nil
	}

	if err := w.repo.CreateBatch(ctx, pending); err != nil {
		return fmt.Errorf("worker failed to bulk-insert %d mock images: %w", len(pending), err)
	}
	return nil
}

func (w *Worker) mockOne(ctx context.Context, userID int64) (*model.Image, error) {
	url := fmt.Sprintf("%s?random=%d", w.placeholderURL, rand.Intn(10)+1)

	data, _, err := w.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("worker failed to fetch placeholder image: %w", err)
	}

	filename := "mocked_image_" + uuid.New().String() + ".png"
	key := model.MockedKeyPrefix + filename
	if err := w.storage.Put(ctx, key, int64(len(data)), model.PNG, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("worker failed to put mock image to storage: %w", err)
	}

	return &model.Image{
		Filename: filename,
		UserID:   userID,
		URL:      w.storage.URL(key),
		MimeType: model.PNG,
	}, nil
}
