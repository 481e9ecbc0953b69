package service

import (
	"Athena/backend/go/internal/config"
	"Athena/backend/go/internal/database/kafka"
	"Athena/backend/go/internal/database/milvus"
	"Athena/backend/go/internal/database/minio"
	"Athena/backend/go/internal/database/mysql"
	"Athena/backend/go/internal/database/postgres"
	"Athena/backend/go/internal/database/redis"
	"Athena/backend/go/internal/embedding"
	"Athena/backend/go/internal/llm"
	"Athena/backend/go/internal/rag_service/rag/dal"
	"Athena/backend/go/internal/rag_service/rag/events"
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/loaders"
	"Athena/backend/go/internal/rag_service/rag/locks"
	"Athena/backend/go/internal/rag_service/rag/pipeline"
	"Athena/backend/go/internal/rag_service/rag/splitters"
	"Athena/backend/go/internal/rag_service/rag/storages/blobstore"
	"Athena/backend/go/internal/rag_service/rag/storages/memstore"
	"Athena/backend/go/internal/rag_service/rag/storages/vectorstore"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// wiring collects what Bootstrap opened so it can be checked and released.
type wiring struct {
	closers []func(context.Context)
	checks  map[string]func(context.Context) error
}

func (w *wiring) onClose(fn func(context.Context)) { w.closers = append(w.closers, fn) }

func (w *wiring) check(name string, fn func(context.Context) error) { w.checks[name] = fn }

// stores groups the relational and vector sides chosen by configuration.
type stores struct {
	documents     interfaces.DocumentStore
	conversations interfaces.ConversationStore
	quizzes       interfaces.QuizStore
	vectors       interfaces.VectorStore
}

// Bootstrap connects every backend named in cfg and wires the pipelines.
// The returned shutdown function releases the connections it opened.
func Bootstrap(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (*Service, func(context.Context), error) {
	w := &wiring{checks: map[string]func(context.Context) error{}}
	shutdown := func(ctx context.Context) {
		for i := len(w.closers) - 1; i >= 0; i-- {
			w.closers[i](ctx)
		}
	}
	fail := func(err error) (*Service, func(context.Context), error) {
		shutdown(ctx)
		return nil, nil, err
	}

	st, err := openStores(ctx, cfg, log, w)
	if err != nil {
		return fail(err)
	}

	provider, err := embedding.NewProvider(ctx, cfg.Embedding)
	if err != nil {
		return fail(err)
	}
	embedder := embedding.NewClient(provider, cfg.Embedding.Dimension, cfg.Embedding.MaxInputChars, log.With("component", "embedding"))

	model, err := llm.NewClient(ctx, cfg.LLM)
	if err != nil {
		return fail(err)
	}

	chunker, err := splitters.NewWordSplitter(cfg.Ingestion.ChunkSize, cfg.Ingestion.ChunkOverlap)
	if err != nil {
		return fail(err)
	}
	extractor := loaders.NewRouter(loaders.Options{
		MaxPages:       cfg.Ingestion.MaxPages,
		DocxLicenseKey: cfg.Ingestion.DocxLicenseKey,
	}, log.With("component", "loaders"))

	blobs, err := openBlobStore(ctx, cfg, w)
	if err != nil {
		return fail(err)
	}
	publisher, err := openPublisher(cfg, log, w)
	if err != nil {
		return fail(err)
	}
	locker, err := openLocker(ctx, cfg, log, w)
	if err != nil {
		return fail(err)
	}
	trimmer, err := pipeline.NewHistoryTrimmer(cfg.Chat.Encoding, cfg.Chat.MaxContextTokens)
	if err != nil {
		return fail(err)
	}

	retrieval, err := pipeline.NewRetrievalEngine(embedder, st.vectors, pipeline.RetrievalOptions{
		DefaultTopK: cfg.Retrieval.DefaultTopK,
		MaxTopK:     cfg.Retrieval.MaxTopK,
		CacheSize:   cfg.Retrieval.CacheSize,
		CacheTTL:    config.Duration(cfg.Retrieval.CacheTTL, 10*time.Minute),
	}, log.With("component", "retrieval"))
	if err != nil {
		return fail(err)
	}

	svc := New(Components{
		Ingestion: pipeline.NewIngestionPipeline(extractor, chunker, embedder, st.documents, st.vectors, blobs, publisher,
			pipeline.IngestionOptions{
				MaxUploadBytes:   cfg.Ingestion.MaxUploadBytes,
				EmbedConcurrency: cfg.Ingestion.EmbedConcurrency,
			}, log.With("component", "ingestion")),
		Retrieval: retrieval,
		Chat: pipeline.NewConversationManager(st.conversations, model, locker, trimmer, pipeline.ChatOptions{
			HistoryLimit: cfg.Chat.HistoryLimit,
			SystemPrompt: cfg.Chat.SystemPrompt,
			MaxTokens:    cfg.Chat.MaxTokens,
			Temperature:  cfg.Chat.Temperature,
			LockWait:     config.Duration(cfg.Chat.Lock.Wait, 30*time.Second),
		}, log.With("component", "chat")),
		Quizzes: pipeline.NewQuizGenerator(st.documents, st.quizzes, model, pipeline.QuizOptions{
			MaxContentChars: cfg.Quiz.MaxContentChars,
			MaxTokens:       cfg.Quiz.MaxTokens,
			Temperature:     cfg.Quiz.Temperature,
		}, log.With("component", "quiz")),
		Documents: st.documents,
		Vectors:   st.vectors,
		Blobs:     blobs,
		Checks:    w.checks,
	}, log)

	log.WithFields(map[string]interface{}{
		"driver":      cfg.Databases.Driver,
		"vectorStore": cfg.VectorStore.Provider,
		"embedding":   provider.Name(),
		"llm":         cfg.LLM.Provider,
	}).Info("RAG service components initialised")
	return svc, shutdown, nil
}

func openStores(ctx context.Context, cfg *config.AppConfig, log *logger.Logger, w *wiring) (*stores, error) {
	dim := cfg.Embedding.Dimension
	if cfg.Databases.Driver == "memory" {
		mem := memstore.New(dim)
		return &stores{documents: mem, conversations: mem, quizzes: mem, vectors: mem.Vectors()}, nil
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Databases.Driver {
	case "postgres":
		db, err = postgres.GetDB(&cfg.Databases.Postgres)
		if err == nil {
			w.onClose(func(context.Context) { _ = postgres.Close() })
			w.check("postgres", postgres.HealthCheck)
		}
	case "mysql":
		db, err = mysql.GetDB(&cfg.Databases.MySQL)
		if err == nil {
			w.onClose(func(context.Context) { _ = mysql.Close() })
			w.check("mysql", mysql.HealthCheck)
		}
	default:
		err = fmt.Errorf("unsupported database driver: %s", cfg.Databases.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := dal.AutoMigrate(ctx, db); err != nil {
		return nil, err
	}

	st := &stores{
		documents:     dal.NewDocumentDAL(db),
		conversations: dal.NewConversationDAL(db),
		quizzes:       dal.NewQuizDAL(db),
	}
	switch cfg.VectorStore.Provider {
	case "pgvector":
		st.vectors, err = vectorstore.NewPgVectorStore(ctx, db, dim, log.With("component", "pgvector"))
	case "milvus":
		var client *milvus.MilvusClient
		client, err = milvus.GetClient(ctx, &cfg.Databases.Milvus)
		if err != nil {
			return nil, err
		}
		w.onClose(client.Close)
		w.check("milvus", client.HealthCheck)
		st.vectors, err = vectorstore.NewMilvusStore(ctx, db, client, dim, log.With("component", "milvus"))
	default:
		err = fmt.Errorf("unsupported vector store: %s", cfg.VectorStore.Provider)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func openBlobStore(ctx context.Context, cfg *config.AppConfig, w *wiring) (interfaces.BlobStore, error) {
	switch cfg.Storage.Provider {
	case "minio":
		client, err := minio.GetClient(ctx, &cfg.Databases.MinIO)
		if err != nil {
			return nil, err
		}
		if err := minio.EnsureBucket(ctx, client, cfg.Databases.MinIO.Bucket); err != nil {
			return nil, err
		}
		w.check("minio", minio.HealthCheck)
		return blobstore.NewMinIO(client, cfg.Databases.MinIO.Bucket), nil
	case "local":
		return blobstore.NewLocal(cfg.Storage.LocalDir)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Storage.Provider)
	}
}

func openPublisher(cfg *config.AppConfig, log *logger.Logger, w *wiring) (interfaces.EventPublisher, error) {
	if !cfg.Events.Enabled {
		return events.Noop{}, nil
	}
	client, err := kafka.GetClient(&cfg.Databases.Kafka)
	if err != nil {
		return nil, err
	}
	w.onClose(func(context.Context) { _ = client.Close() })
	w.check("kafka", client.HealthCheck)
	return events.NewKafkaPublisher(client.Writer, cfg.Events.Topic, log.With("component", "events")), nil
}

func openLocker(ctx context.Context, cfg *config.AppConfig, log *logger.Logger, w *wiring) (interfaces.Locker, error) {
	switch cfg.Chat.Lock.Provider {
	case "redis":
		client, err := redis.GetClient(ctx, &cfg.Databases.Redis)
		if err != nil {
			return nil, err
		}
		w.onClose(func(context.Context) { _ = redis.Close() })
		w.check("redis", redis.HealthCheck)
		return locks.NewRedis(client, config.Duration(cfg.Chat.Lock.TTL, 2*time.Minute), log.With("component", "locks")), nil
	case "local":
		return locks.NewLocal(), nil
	default:
		return nil, fmt.Errorf("unsupported lock provider: %s", cfg.Chat.Lock.Provider)
	}
}
