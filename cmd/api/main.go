// Package main (in api-subfolder) provides launch of the whole application except worker
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/UnendingLoop/ImageVariations/internal/fetch"
	"github.com/UnendingLoop/ImageVariations/internal/kafka"
	"github.com/UnendingLoop/ImageVariations/internal/mwauth"
	"github.com/UnendingLoop/ImageVariations/internal/mwlogger"
	"github.com/UnendingLoop/ImageVariations/internal/mwrole"
	"github.com/UnendingLoop/ImageVariations/internal/openai"
	"github.com/UnendingLoop/ImageVariations/internal/repository"
	"github.com/UnendingLoop/ImageVariations/internal/service"
	"github.com/UnendingLoop/ImageVariations/internal/storage"
	"github.com/UnendingLoop/ImageVariations/internal/transport"
	"github.com/UnendingLoop/ImageVariations/internal/ws"
	"github.com/go-pkgz/auth/v2/token"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/ginext"
	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

func main() {
	// инициализировать конфиг/ считать энвы
	appConfig := config.New()
	appConfig.EnableEnv("")
	if err := appConfig.LoadEnvFiles("./.env"); err != nil {
		log.Fatalf("Failed to load envs: %s\nExiting app...", err)
	}

	// стартуем логгер
	zlog.InitConsole()
	if err := zlog.SetLevel("info"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	// готовим заранее слушатель прерываний - контекст для всего приложения
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// подключиться к базе и накатить миграции
	dbConn := repository.ConnectWithRetries(appConfig, 5, 10*time.Second)
	repository.MigrateWithRetries(dbConn.Master, "./migrations", 10, 15*time.Second)

	// подключиться к хранилищу
	strg := storage.NewImgStorage(appConfig, 10*time.Second)
	// создаем экземпляр репо
	repo := repository.NewPostgresImageRepo(dbConn)

	// ждем пока кафка раздуплится и создаем оба топика
	broker := appConfig.GetString("KAFKA_BROKER")
	kafka.WaitKafkaReady(broker, 5*time.Second)
	taskTopic := appConfig.GetString("KAFKA_TASK_TOPIC")
	progressTopic := appConfig.GetString("KAFKA_PROGRESS_TOPIC")
	kafka.InitKafkaTopics(ctx, broker, 10*time.Second, taskTopic, progressTopic)

	// продюсер задач на mock-генерацию
	taskPub := wbfkafka.NewProducer([]string{broker}, taskTopic)

	// читатель прогресса фоновой генерации
	progressQueue := make(chan kafkago.Message)
	progressCons := wbfkafka.NewConsumer([]string{broker}, progressTopic, appConfig.GetString("KAFKA_GROUPID"))
	progressCons.StartConsuming(ctx, progressQueue, retry.Strategy{
		Attempts: 5,
		Delay:    2 * time.Second,
		Backoff:  1.5,
	})

	// websocket-хаб: каждому пользователю его канал images.{id}
	hub := ws.NewHub()
	go hub.Run(ctx)
	go progressPump(ctx, progressQueue, progressCons, hub)

	// клиент генерационного API и скачиватель картинок
	genClient := openai.NewClient(appConfig.GetString("OPENAI_API_KEY"), appConfig.GetString("OPENAI_BASE_URL"))
	fetcher := fetch.NewHTTPFetcher(30 * time.Second)

	// создаем экземпляр сервиса
	var svc ImageAPIService = service.NewImageService(repo, taskPub, strg, genClient, fetcher)
	// cоздаем экземпляр хендлера HTTP
	handlers := transport.NewImageHandler(svc)

	// сетапим роуты
	mode := appConfig.GetString("GIN_MODE")
	engine := ginext.New(mode)

	engine.GET("/ping", handlers.SimplePinger)
	engine.GET("/user", handlers.User)
	engine.POST("/upload-image", handlers.Upload)
	engine.GET("/generate-variations/:id", handlers.GenerateVariations)
	engine.GET("/user-images", handlers.UserImages)
	engine.GET("/ws", func(ctx *ginext.Context) {
		user, ok := mwauth.UserFromContext(ctx.Request.Context())
		if !ok {
			ctx.JSON(401, map[string]string{"error": "unauthorized"})
			return
		}
		hub.ServeWS(ctx.Writer, ctx.Request, user.ID)
	})

	// токен-сервис для auth-мидлвари
	tokenSvc := token.NewService(token.Opts{
		SecretReader: token.SecretFunc(func(id string) (string, error) {
			return appConfig.GetString("JWT_SECRET"), nil
		}),
		TokenDuration: 24 * time.Hour,
		Issuer:        "image-variations",
	})

	// цепочка мидлварей: логгер -> auth -> role -> роуты;
	// /ws не буферизуется role-мидлварью - апгрейду нужен живой writer
	handler := mwlogger.NewMWLogger(
		mwauth.New(
			mwrole.New(engine, repo, "/ws"),
			tokenSvc,
			"/ping",
		),
	)

	srv := &http.Server{
		Addr:    ":" + appConfig.GetString("APP_PORT"),
		Handler: handler,
	}

	// Server launch
	go func() {
		log.Printf("Server running on http://localhost%s\n", srv.Addr)
		err := srv.ListenAndServe()
		if err != nil {
			switch {
			case errors.Is(err, http.ErrServerClosed):
				log.Println("Server gracefully stopping...")
			default:
				log.Printf("Server stopped: %v", err)
				stop()
			}
		}
	}()

	// ждем отмены контекста для запуска грейсфул закрытия соединений бд и кафки
	<-ctx.Done()

	shutdown(taskPub, progressCons, dbConn)
	log.Println("Exiting app...")
}

// progressPump перекладывает события из progress-топика в websocket-хаб
func progressPump(ctx context.Context, queue <-chan kafkago.Message, cons *wbfkafka.Consumer, hub *ws.Hub) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-queue:
			if !ok {
				log.Println("Progress channel closed, stopping pump...")
				return
			}
			userID, err := strconv.ParseInt(string(msg.Key), 10, 64)
			if err != nil {
				log.Printf("Dropping progress event with bad key %q: %v", string(msg.Key), err)
			} else {
				hub.Publish(userID, msg.Value)
			}
			if err := cons.Commit(ctx, msg); err != nil {
				log.Printf("Failed to commit progress-message: %v", err)
			}
		}
	}
}

func shutdown(pub *wbfkafka.Producer, cons *wbfkafka.Consumer, dbConn *dbpg.DB) {
	log.Println("Interrupt received!!! Starting shutdown sequence...")

	// Closing Kafka connections:
	if err := pub.Close(); err != nil {
		log.Println("Failed to close Kafka-producer:", err)
	}
	if err := cons.Close(); err != nil {
		log.Println("Failed to close Kafka-consumer:", err)
	}
	log.Println("Kafka connections closed.")

	// Closing DB connection
	if err := dbConn.Master.Close(); err != nil {
		log.Println("Failed to close DB-conn correctly:", err)
		return
	}
	log.Println("DBconn closed")
}
