// Package main (in worker-subfolder) launches the mock-image generation worker
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/UnendingLoop/ImageVariations/internal/fetch"
	"github.com/UnendingLoop/ImageVariations/internal/kafka"
	"github.com/UnendingLoop/ImageVariations/internal/notifier"
	"github.com/UnendingLoop/ImageVariations/internal/repository"
	"github.com/UnendingLoop/ImageVariations/internal/storage"
	"github.com/UnendingLoop/ImageVariations/internal/worker"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
)

const defaultProgressInterval = 2 * time.Second

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// подключиться к базе
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	// подключиться к хранилищу
	strg := storage.NewImgStorage(appConfig, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresImageRepo(dbConn)

	// ждем пока кафка раздуплится
	broker := appConfig.GetString("KAFKA_BROKER")
	kafka.WaitKafkaReady(broker, 5*time.Second)

	// читатель задач
	queue := make(chan kafkago.Message)
	retryStrategy := retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	}
	taskTopic := appConfig.GetString("KAFKA_TASK_TOPIC")
	groupID := appConfig.GetString("KAFKA_GROUPID")
	cons := wbfkafka.NewConsumer([]string{broker}, taskTopic, groupID)

	// продюсер прогресса; пейсинг публикаций - внутри нотификатора
	progressTopic := appConfig.GetString("KAFKA_PROGRESS_TOPIC")
	progressPub := wbfkafka.NewProducer([]string{broker}, progressTopic)

	interval := defaultProgressInterval
	if raw := appConfig.GetString("PROGRESS_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			log.Printf("Incorrect PROGRESS_INTERVAL %q, using default %v", raw, interval)
		} else {
			interval = parsed
		}
	}
	notif := notifier.NewKafkaNotifier(progressPub, interval)

	placeholderURL := appConfig.GetString("PLACEHOLDER_URL")
	if placeholderURL == "" {
		placeholderURL = "https://picsum.photos/200"
	}

	fetcher := fetch.NewHTTPFetcher(30 * time.Second)

	// Listening to interruptions through context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cons.StartConsuming(ctx, queue, retryStrategy)

	// Собираем воедино все что нужно воркеру и запускаем его
	go worker.NewWorkerInstance(strg, repo, notif, fetcher, queue, cons, placeholderURL).StartWorker(ctx)

	// Waiting for interruption to stop context to start Graceful shutdown
	<-ctx.Done()

	shutdown(cons, progressPub, dbConn)
	log.Println("Exiting worker...")
}

func shutdown(cons *wbfkafka.Consumer, pub *wbfkafka.Producer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connections:
	if err := cons.Close(); err != nil {
		log.Println("Failed to close Kafka-reader:", err)
	}
	if err := pub.Close(); err != nil {
		log.Println("Failed to close Kafka-producer:", err)
	}
	log.Println("Kafka connections closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
