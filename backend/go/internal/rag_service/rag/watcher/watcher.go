// Package watcher ingests documents dropped into a directory. A file's
// first-level subdirectory names its subject; files at the root get the
// default subject.
package watcher

import (
	"Athena/backend/go/internal/rag_service/rag/loaders"
	"Athena/backend/go/internal/rag_service/rag/schema"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// IngestFunc runs one ingestion.
type IngestFunc func(ctx context.Context, req schema.IngestRequest) (*schema.IngestResult, error)

// Watcher turns settled file writes into ingestion requests.
type Watcher struct {
	root           string
	defaultSubject string
	settle         time.Duration
	maxBytes       int64
	ingest         IngestFunc
	log            *logger.Logger

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool
	wg      sync.WaitGroup
}

// New creates the root directory if needed and watches it and its subdirectories.
func New(root, defaultSubject string, settle time.Duration, maxBytes int64, ingest IngestFunc, log *logger.Logger) (*Watcher, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create watch directory: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &Watcher{
		root:           root,
		defaultSubject: defaultSubject,
		settle:         settle,
		maxBytes:       maxBytes,
		ingest:         ingest,
		log:            log,
		watcher:        fw,
		pending:        make(map[string]*time.Timer),
	}
	if err := w.addTree(root); err != nil {
		fw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is done, then waits for in-flight ingestions.
func (w *Watcher) Run(ctx context.Context) error {
	defer func() {
		w.mu.Lock()
		for _, t := range w.pending {
			t.Stop()
		}
		w.pending = map[string]*time.Timer{}
		w.closed = true
		w.mu.Unlock()
		w.wg.Wait()
		w.watcher.Close()
	}()

	w.log.Info(fmt.Sprintf("watching %s for new documents", w.root))
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.log.WithErr(err).Warn("file watcher error")
		}
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	info, err := os.Stat(event.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if err := w.addTree(event.Name); err != nil {
			w.log.WithErr(err).Warn("failed to watch new directory")
		}
		return
	}
	if !loaders.SupportedExtension(event.Name) || strings.HasPrefix(filepath.Base(event.Name), ".") {
		return
	}
	w.schedule(ctx, event.Name)
}

// schedule restarts the settle timer for path, so a file is ingested once
// after its last write.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if t, ok := w.pending[path]; ok {
		t.Reset(w.settle)
		return
	}
	w.pending[path] = time.AfterFunc(w.settle, func() {
		w.mu.Lock()
		delete(w.pending, path)
		if w.closed {
			w.mu.Unlock()
			return
		}
		w.wg.Add(1)
		w.mu.Unlock()
		defer w.wg.Done()
		w.ingestFile(ctx, path)
	})
}

func (w *Watcher) ingestFile(ctx context.Context, path string) {
	log := w.log.With("file", path)
	req, err := w.Request(path)
	if err != nil {
		log.WithErr(err).Warn("skipping watched file")
		return
	}
	res, err := w.ingest(ctx, req)
	if err != nil {
		log.WithErr(err).Error("ingestion of watched file failed")
		return
	}
	log.WithFields(map[string]interface{}{
		"documentId": res.DocumentID,
		"chunks":     res.ChunksProcessed,
		"total":      res.TotalChunks,
	}).Info("ingested watched file")
}

// Request reads path and derives its title and subject.
func (w *Watcher) Request(path string) (schema.IngestRequest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return schema.IngestRequest{}, err
	}
	if w.maxBytes > 0 && info.Size() > w.maxBytes {
		return schema.IngestRequest{}, fmt.Errorf("file is %d bytes, limit is %d", info.Size(), w.maxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.IngestRequest{}, err
	}
	name := filepath.Base(path)
	return schema.IngestRequest{
		Title:       strings.TrimSuffix(name, filepath.Ext(name)),
		Subject:     w.subjectOf(path),
		FileName:    name,
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Data:        data,
	}, nil
}

func (w *Watcher) subjectOf(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return w.defaultSubject
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || parts[0] == "." || parts[0] == ".." {
		return w.defaultSubject
	}
	return parts[0]
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}
