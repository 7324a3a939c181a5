// Package notifier publishes per-user progress events to the progress topic
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/UnendingLoop/ImageVariations/internal/model"
	"github.com/wb-go/wbf/retry"
	"golang.org/x/time/rate"
)

// ProgressPublisher - контракт для работы с очередью
type ProgressPublisher interface {
	SendWithRetry(ctx context.Context, strategy retry.Strategy, key []byte, v []byte) error
}

var retryStrategy = retry.Strategy{
	Attempts: 5,
	Delay:    3 * time.Second,
	Backoff:  1.5,
}

// KafkaNotifier - доставка fire-and-forget: ключ сообщения = userID,
// подтверждений и гарантий порядка сверх порядка отправки нет.
// Троттлинг живет здесь, а не в продьюсящем цикле - пейсинг это политика
// нотификатора, а не корректность генератора.
type KafkaNotifier struct {
	pub     ProgressPublisher
	limiter *rate.Limiter
}

func NewKafkaNotifier(pub ProgressPublisher, minInterval time.Duration) *KafkaNotifier {
	return &KafkaNotifier{
		pub:     pub,
		limiter: rate.NewLimiter(rate.Every(minInterval), 1),
	}
}

// Channel - имя логического канала пользователя
func Channel(userID int64) string {
	return fmt.Sprintf("images.%d", userID)
}

func (n *KafkaNotifier) Publish(ctx context.Context, userID int64, event model.ProgressEvent) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	envelope := model.ProgressEnvelope{
		Channel: Channel(userID),
		Event:   model.ProgressEventName,
		Data:    event,
	}

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}

	key := strconv.FormatInt(userID, 10)
	return n.pub.SendWithRetry(ctx, retryStrategy, []byte(key), payload)
}
