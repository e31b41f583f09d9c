package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"marketplace_chat/internal/chat/app"
	"marketplace_chat/internal/chat/repository"
	"marketplace_chat/internal/chat/router"
	"marketplace_chat/pkg/config"
	"marketplace_chat/pkg/database"
	"marketplace_chat/pkg/logger"
	testtool "marketplace_chat/pkg/test_tool"

	"github.com/gofiber/fiber/v2"
	fiber_log "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

func main() {
	logger.Log = logger.Initialize(config.EnvConfig.ChatRelay, config.EnvConfig.ChatRelayLogPath)
	defer logger.Log.Sync()
	cfg := config.DefaultChatRelay(config.LoadConfig[config.ChatRelay](config.EnvConfig.ChatRelay, config.EnvConfig.ChatRelayYAMLPath))

	ctx := context.Background()

	// 1. 訊息儲存: 有設定 mongo 就用 mongo, 否則放記憶體
	var msgRepo repository.MessageRepository
	if cfg.MongoSQL.Host != "" {
		uri := database.MongoURI(cfg.MongoSQL.User, cfg.MongoSQL.Password, cfg.MongoSQL.Host, cfg.MongoSQL.Port)
		mongo, err := database.NewMongoDB(ctx,
			database.Connection{
				ConnectStr:    uri,
				RetryCount:    cfg.MongoSQL.RetryCount,
				RetryInterval: time.Duration(cfg.MongoSQL.RetryInterval) * time.Second,
			},
			cfg.MongoSQL.Database)
		if err != nil {
			logger.Log.Fatal(
				"Unable to connect to mongoDB database after retries",
				zap.String("host", cfg.MongoSQL.Host),
				zap.Error(err),
			)
		}
		defer mongo.Close(ctx)

		if err := repository.EnsureMessageIndexes(ctx, mongo.Database); err != nil {
			logger.Log.Warn("ensure message indexes", zap.Error(err))
		}
		msgRepo = repository.NewMongoMessageRepository(mongo.Database)
	} else {
		logger.Log.Warn("mongo not configured, history is kept in memory")
		msgRepo = repository.NewMemoryMessageRepository()
	}

	// 2. Pub/Sub: 多台 relay 時透過 redis 廣播
	var pubSub repository.PubSub
	if cfg.Redis.Enabled {
		masterName, sentinel := config.GetRedisSetting()
		redisClient, err := database.NewRedisClient(ctx, database.RedisConnection{
			Addr:          cfg.Redis.Addr,
			MasterName:    masterName,
			SentinelAddrs: sentinel,
			DB:            cfg.Redis.RedisDB,
		})
		if err != nil {
			logger.Log.Fatal(fmt.Sprintf("connect redis err : %v", err))
		}
		defer redisClient.Close()
		pubSub = repository.NewRedisPubSub(redisClient)
	} else {
		pubSub = repository.NewMemoryPubSub()
	}

	// 3. 推播事件
	var notifier repository.Notifier = repository.NopNotifier{}
	if len(cfg.Kafka.Brokers) > 0 {
		writer, err := database.NewKafkaWriterWithRetry(ctx, database.KafkaConnection{
			Brokers:       cfg.Kafka.Brokers,
			Topic:         cfg.Kafka.Topic,
			RetryCount:    cfg.Kafka.RetryCount,
			RetryInterval: time.Duration(cfg.Kafka.RetryInterval) * time.Second,
		})
		if err != nil {
			logger.Log.Fatal("kafka writer", zap.Error(err))
		}
		kafkaNotifier := repository.NewKafkaNotifier(writer)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
	}

	// 4. 初始化 UseCase
	messageUC := app.NewMessageUseCase(msgRepo, pubSub, notifier, cfg.HistoryLimit)

	testtool.StartPprof(cfg.Pprof)

	// 5. 啟動 Fiber
	r := fiber.New(fiber.Config{DisableStartupMessage: config.IsProduction()})
	file, err := os.OpenFile(fmt.Sprintf("%s/access.log", config.EnvConfig.ChatRelayLogPath), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	defer file.Close()

	r.Use(recover.New())
	r.Use(fiber_log.New(fiber_log.Config{
		Output: file, // 将日志输出到文件
	}))

	// 注册路由
	router.RegisterRoutes(r,
		app.NewChatWebsocketHandler(messageUC, cfg.PingInterval),
		app.NewChatHandler(messageUC),
	)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		logger.Log.Info("shutting down chat relay")
		if err := r.ShutdownWithTimeout(5 * time.Second); err != nil {
			logger.Log.Warn("shutdown", zap.Error(err))
		}
	}()

	// Listen
	port := ":" + cfg.Port
	logger.Log.Info("Chat Relay listening", zap.String("port", port))
	if err := r.Listen(port); err != nil {
		logger.Log.Fatal("Failed to start Fiber", zap.Error(err))
	}
}
