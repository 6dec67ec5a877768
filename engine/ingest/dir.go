package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/panjf2000/ants/v2"
)

// DefaultDebounce is how long Watch waits for writes to a file to settle.
const DefaultDebounce = 500 * time.Millisecond

// Importer loads speech files from disk through a Pipeline.
type Importer struct {
	pipeline *Pipeline
	workers  int
	debounce time.Duration
	logger   *slog.Logger
}

// NewImporter creates an Importer running up to workers files at once.
func NewImporter(p *Pipeline, workers int, logger *slog.Logger) *Importer {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{pipeline: p, workers: workers, debounce: DefaultDebounce, logger: logger}
}

// ImportFile ingests a single file.
func (im *Importer) ImportFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ingest: read %s: %w", path, err)
	}
	_, err = im.pipeline.Ingest(ctx, Document{Filename: path, Text: string(data)})
	return err
}

// ImportDir ingests every .txt file under dir on a bounded worker pool.
// Per-file failures are collected in the report, not returned.
func (im *Importer) ImportDir(ctx context.Context, dir string) (Report, error) {
	files, err := speechFiles(dir)
	if err != nil {
		return Report{}, err
	}

	pool, err := ants.NewPool(im.workers)
	if err != nil {
		return Report{}, fmt.Errorf("ingest: worker pool: %w", err)
	}
	defer pool.Release()

	type outcome struct {
		err      error
		embedded bool
	}
	results := make([]outcome, len(files))
	var wg sync.WaitGroup
	for i, path := range files {
		if ctx.Err() != nil {
			results[i] = outcome{err: ctx.Err()}
			continue
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			data, err := os.ReadFile(path)
			if err != nil {
				results[i] = outcome{err: fmt.Errorf("ingest: read %s: %w", path, err)}
				return
			}
			s, err := im.pipeline.Ingest(ctx, Document{Filename: path, Text: string(data)})
			results[i] = outcome{err: err, embedded: s.HasEmbedding()}
		})
		if err != nil {
			wg.Done()
			results[i] = outcome{err: fmt.Errorf("ingest: submit %s: %w", path, err)}
		}
	}
	wg.Wait()

	var rep Report
	for _, r := range results {
		rep.add(r.embedded, r.err)
	}
	im.logger.Info("ingest: directory imported", "dir", dir, "files", len(files),
		"stored", rep.Stored, "embedded", rep.Embedded, "duplicates", rep.Duplicates,
		"skipped", rep.Skipped, "failed", rep.Failed)
	return rep, nil
}

// Watch ingests .txt files created or rewritten under dir until ctx is
// done. Bursts of writes to the same file are debounced.
func (im *Importer) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("ingest: watch %s: %w", dir, err)
	}
	im.logger.Info("ingest: watching", "dir", dir, "debounce", im.debounce)

	var (
		mu     sync.Mutex
		timers = map[string]*time.Timer{}
		wg     sync.WaitGroup
	)
	defer func() {
		mu.Lock()
		for _, t := range timers {
			if t.Stop() {
				wg.Done()
			}
		}
		mu.Unlock()
		wg.Wait()
	}()

	trigger := func(path string) {
		mu.Lock()
		defer mu.Unlock()
		if t, ok := timers[path]; ok && t.Stop() {
			wg.Done()
		}
		wg.Add(1)
		var t *time.Timer
		t = time.AfterFunc(im.debounce, func() {
			defer wg.Done()
			mu.Lock()
			if timers[path] == t {
				delete(timers, path)
			}
			mu.Unlock()
			if err := im.ImportFile(ctx, path); err != nil && !isBenign(err) {
				im.logger.Warn("ingest: watched file failed", "file", path, "err", err)
			}
		})
		timers[path] = t
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if strings.EqualFold(filepath.Ext(event.Name), ".txt") {
				trigger(event.Name)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			im.logger.Warn("ingest: watch error", "err", err)
		}
	}
}

func speechFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".txt") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: scan %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}
