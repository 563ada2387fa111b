package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"ragweaver/internal/ai"
	"ragweaver/internal/app"
	"ragweaver/internal/cache"
	"ragweaver/internal/config"
	"ragweaver/internal/memory"
	"ragweaver/internal/model"
	mysqlClient "ragweaver/internal/platform/mysql"
	postgresClient "ragweaver/internal/platform/postgres"
	rabbitmqClient "ragweaver/internal/platform/rabbitmq"
	redisClient "ragweaver/internal/platform/redis"
	"ragweaver/internal/repository"
	"ragweaver/internal/vectorstore/pgvector"
	"ragweaver/internal/worker"
)

// App owns every long-lived resource and the services built on them.
// Optional backends stay nil when disabled.
type App struct {
	Config     *config.Config
	MySQL      *gorm.DB
	Postgres   *gorm.DB
	Redis      *redis.Client
	MQConn     *amqp.Connection
	TurnWorker *worker.TurnPersistWorker

	Ingest    *app.IngestService
	Query     *app.QueryService
	Documents *app.DocumentService
	History   *app.HistoryService

	StartedAt time.Time
}

type stores struct {
	documents app.DocumentStore
	vectors   app.VectorStore
	history   app.HistoryStore
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{Config: cfg, StartedAt: time.Now()}

	st, err := a.openStores(ctx)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	var (
		publisher    app.TurnPublisher
		historyCache app.HistoryCache
	)
	if cfg.Redis.Enabled {
		a.Redis, err = redisClient.New(ctx, redisClient.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		historyCache = cache.NewHistoryCache(
			a.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}
	if cfg.RabbitMQ.Enabled {
		a.MQConn, err = rabbitmqClient.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.TurnPersistQueue)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.TurnWorker = worker.NewTurnPersistWorker(a.MQConn, st.history, cfg.RabbitMQ.TurnPersistQueue)
		if err := a.TurnWorker.Start(ctx); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("start turn worker failed: %w", err)
		}
		publisher = rabbitmqClient.NewTurnPublisher(a.MQConn, cfg.RabbitMQ.TurnPersistQueue)
	}

	llm := ai.NewOpenAICompatibleClient(ai.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		ChatModel:      cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Timeout:        cfg.LLMTimeout(),
	})

	a.History = app.NewHistoryService(st.history, publisher, historyCache)
	a.Documents = app.NewDocumentService(st.documents, st.vectors)
	a.Ingest = app.NewIngestService(st.documents, st.vectors, llm, app.IngestConfig{
		ChunkSize:    cfg.RAG.ChunkSize,
		Concurrency:  cfg.RAG.IngestConcurrency,
		MaxFileSize:  cfg.Upload.MaxFileSize,
		AllowedTypes: cfg.Upload.AllowedTypes,
		Policy:       app.DefaultIngestPolicy(),
	})
	a.Query = app.NewQueryService(a.History, st.vectors, llm, llm, app.QueryConfig{
		MatchThreshold: float32(cfg.RAG.MatchThreshold),
		MatchCount:     cfg.RAG.MatchCount,
		SystemPrompt:   cfg.RAG.SystemPrompt,
		Policy:         app.DefaultQueryPolicy(),
	})

	logrus.WithFields(logrus.Fields{
		"storage":  cfg.Storage.Driver,
		"vectors":  cfg.Storage.VectorDriver,
		"redis":    cfg.Redis.Enabled,
		"rabbitmq": cfg.RabbitMQ.Enabled,
	}).Info("application wired")
	return a, nil
}

func (a *App) openStores(ctx context.Context) (stores, error) {
	cfg := a.Config
	var st stores

	needMySQL := cfg.Storage.Driver == config.StorageMySQL || cfg.Storage.VectorDriver == config.StorageMySQL
	if needMySQL {
		db, err := mysqlClient.New(ctx, cfg.MySQLDSN(), time.Duration(cfg.MySQL.SlowThresholdMillis)*time.Millisecond)
		if err != nil {
			return st, err
		}
		a.MySQL = db
		if err := db.AutoMigrate(&model.Document{}, &model.Chunk{}, &model.ChatTurn{}); err != nil {
			return st, fmt.Errorf("auto migrate tables failed: %w", err)
		}
	}

	switch cfg.Storage.Driver {
	case config.StorageMySQL:
		st.documents = repository.NewDocumentRepository(a.MySQL)
		st.history = repository.NewChatTurnRepository(a.MySQL)
	default:
		st.documents = memory.NewDocumentStore()
		st.history = memory.NewHistoryStore()
	}

	switch cfg.Storage.VectorDriver {
	case config.StorageMySQL:
		st.vectors = repository.NewChunkRepository(a.MySQL)
	case config.StoragePGVector:
		db, err := postgresClient.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return st, err
		}
		a.Postgres = db
		store, err := pgvector.New(db, cfg.Postgres.EmbeddingDim)
		if err != nil {
			return st, err
		}
		st.vectors = store
	default:
		st.vectors = memory.NewVectorStore()
	}
	return st, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.TurnWorker != nil {
		a.TurnWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	for _, db := range []*gorm.DB{a.MySQL, a.Postgres} {
		if db == nil {
			continue
		}
		sqlDB, err := db.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	return closeErr
}
