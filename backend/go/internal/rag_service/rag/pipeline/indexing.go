package pipeline

import (
	"Athena/backend/go/internal/models"
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"Athena/backend/go/internal/rag_service/rag/storages/blobstore"
	"Athena/backend/go/internal/rag_service/rag/textutil"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// IngestionOptions tunes an IngestionPipeline.
type IngestionOptions struct {
	MaxUploadBytes   int64 // 0 disables the size check
	EmbedConcurrency int   // chunks embedded at once; 1 or less is sequential
}

// IngestionPipeline orchestrates storing, extracting, chunking, embedding and indexing one uploaded document.
type IngestionPipeline struct {
	extractor interfaces.Extractor
	chunker   interfaces.Chunker
	embedder  interfaces.Embedder
	documents interfaces.DocumentStore
	vectors   interfaces.VectorStore
	blobs     interfaces.BlobStore
	events    interfaces.EventPublisher
	opts      IngestionOptions
	log       *logger.Logger
	now       func() time.Time
}

// NewIngestionPipeline creates a new IngestionPipeline. blobs and events may be nil.
func NewIngestionPipeline(
	extractor interfaces.Extractor,
	chunker interfaces.Chunker,
	embedder interfaces.Embedder,
	documents interfaces.DocumentStore,
	vectors interfaces.VectorStore,
	blobs interfaces.BlobStore,
	events interfaces.EventPublisher,
	opts IngestionOptions,
	log *logger.Logger,
) *IngestionPipeline {
	return &IngestionPipeline{
		extractor: extractor,
		chunker:   chunker,
		embedder:  embedder,
		documents: documents,
		vectors:   vectors,
		blobs:     blobs,
		events:    events,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// chunkOutcome is the result of indexing one chunk.
type chunkOutcome struct {
	err error
}

// Ingest runs the whole pipeline. Extraction failures are fatal and leave the
// document row in place; individual chunk failures only become warnings.
func (p *IngestionPipeline) Ingest(ctx context.Context, req schema.IngestRequest) (*schema.IngestResult, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}

	doc := &models.Document{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		Subject:     strings.TrimSpace(req.Subject),
		FileName:    req.FileName,
		ContentType: req.ContentType,
		SizeBytes:   int64(len(req.Data)),
	}
	log := p.log.WithFields(map[string]interface{}{"documentId": doc.ID, "file": req.FileName})
	log.Info(fmt.Sprintf("Starting ingestion of '%s' (%d bytes)", doc.Title, doc.SizeBytes))

	if p.blobs != nil {
		location, err := p.blobs.Put(ctx, blobstore.Key(doc.ID, req.FileName), req.Data, req.ContentType)
		if err != nil {
			return nil, fmt.Errorf("store upload: %w", err)
		}
		doc.StorageLocation = location
	}
	if err := p.documents.CreateDocument(ctx, doc); err != nil {
		if p.blobs != nil {
			if delErr := p.blobs.Delete(ctx, doc.StorageLocation); delErr != nil {
				log.WithErr(delErr).Warn("failed to remove orphaned upload")
			}
		}
		return nil, err
	}

	text, err := p.extractor.Extract(ctx, req.FileName, req.Data)
	if err != nil {
		log.WithErr(err).Error("Failed to extract text")
		return nil, err
	}
	text = textutil.Sanitize(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %s", ragerr.ErrNoTextExtracted, req.FileName)
	}

	chunks := p.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ragerr.ErrNoChunksGenerated, req.FileName)
	}
	log.Info(fmt.Sprintf("Split into %d chunks", len(chunks)))

	outcomes := p.indexChunks(ctx, doc.ID, chunks)

	res := &schema.IngestResult{DocumentID: doc.ID, TotalChunks: len(chunks), Warnings: []string{}}
	var firstErr error
	for i, o := range outcomes {
		if o.err == nil {
			res.ChunksProcessed++
			continue
		}
		if firstErr == nil {
			firstErr = o.err
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("chunk %d: %v", i, o.err))
	}
	if res.ChunksProcessed == 0 {
		log.WithErr(firstErr).Error("Every chunk failed to index")
		return nil, fmt.Errorf("%w (%d chunks): %w", ragerr.ErrAllChunksFailed, len(chunks), firstErr)
	}
	if len(res.Warnings) > 0 {
		log.Warn(fmt.Sprintf("Indexed %d of %d chunks", res.ChunksProcessed, res.TotalChunks))
	} else {
		log.Info(fmt.Sprintf("Successfully indexed all %d chunks", res.TotalChunks))
	}

	p.publish(ctx, doc, res, log)
	return res, nil
}

func (p *IngestionPipeline) validate(req schema.IngestRequest) error {
	if strings.TrimSpace(req.Title) == "" {
		return fmt.Errorf("%w: title is required", ragerr.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ragerr.ErrInvalidInput)
	}
	if len(req.Data) == 0 {
		return fmt.Errorf("%w: uploaded file %q is empty", ragerr.ErrEmptyInput, req.FileName)
	}
	if p.opts.MaxUploadBytes > 0 && int64(len(req.Data)) > p.opts.MaxUploadBytes {
		return fmt.Errorf("%w: file is %d bytes, limit is %d", ragerr.ErrInvalidInput, len(req.Data), p.opts.MaxUploadBytes)
	}
	return nil
}

// indexChunks embeds and stores every chunk. Each chunk succeeds or fails on
// its own; outcomes are returned in chunk order.
func (p *IngestionPipeline) indexChunks(ctx context.Context, documentID string, chunks []string) []chunkOutcome {
	outcomes := make([]chunkOutcome, len(chunks))
	index := func(i int) {
		vector, err := p.embedder.Embed(ctx, chunks[i])
		if err == nil {
			err = p.vectors.Store(ctx, &models.Chunk{
				ID:         uuid.NewString(),
				DocumentID: documentID,
				ChunkIndex: i,
				Content:    chunks[i],
			}, vector)
		}
		outcomes[i] = chunkOutcome{err: err}
	}

	if p.opts.EmbedConcurrency <= 1 {
		for i := range chunks {
			index(i)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(p.opts.EmbedConcurrency)
	for i := range chunks {
		g.Go(func() error {
			index(i)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func (p *IngestionPipeline) publish(ctx context.Context, doc *models.Document, res *schema.IngestResult, log *logger.Logger) {
	if p.events == nil {
		return
	}
	event := schema.IngestionEvent{
		DocumentID:      doc.ID,
		Title:           doc.Title,
		Subject:         doc.Subject,
		ChunksProcessed: res.ChunksProcessed,
		TotalChunks:     res.TotalChunks,
		Warnings:        res.Warnings,
		At:              p.now().UTC(),
	}
	if err := p.events.PublishIngested(ctx, event); err != nil {
		log.WithErr(err).Warn("failed to publish ingestion event")
	}
}
