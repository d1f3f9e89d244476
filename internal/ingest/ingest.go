// Package ingest turns files dropped into a watched folder into uploads.
// Files under a "receipts" subfolder become receipts; everything else is
// uploaded as a document of type "other".
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/tax-portal/internal/async"
	"github.com/joseph-ayodele/tax-portal/internal/common"
	"github.com/joseph-ayodele/tax-portal/internal/upload"
)

// ReceiptsDir is the subfolder whose files are uploaded as receipts.
const ReceiptsDir = "receipts"

// Router maps a dropped path to a queue job.
type Router struct {
	Root string
}

func (r Router) Job(path string) async.Job {
	return async.Job{
		Path:        path,
		Receipt:     r.isReceipt(path),
		SubmittedAt: time.Now(),
		TraceID:     uuid.NewString(),
	}
}

func (r Router) isReceipt(path string) bool {
	rel, err := filepath.Rel(r.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	first, _, _ := strings.Cut(filepath.ToSlash(rel), "/")
	return strings.EqualFold(first, ReceiptsDir) && first != rel
}

// Uploader handles queue jobs by quick-uploading the file. Content already
// uploaded in this process is skipped, so a file that is rewritten with the
// same bytes is sent once.
type Uploader struct {
	api    upload.API
	opts   []upload.Option
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

func NewUploader(api upload.API, logger *slog.Logger, opts ...upload.Option) *Uploader {
	logger = common.LoggerOrDefault(logger)
	return &Uploader{
		api:    api,
		opts:   append([]upload.Option{upload.WithLogger(logger)}, opts...),
		logger: logger,
		seen:   map[string]struct{}{},
	}
}

// Handle is an async.Handler.
func (u *Uploader) Handle(ctx context.Context, job async.Job) error {
	sum, err := hashFile(job.Path)
	if err != nil {
		return err
	}
	if u.isSeen(sum) {
		u.logger.Info("ingest.upload.dedup", "path", job.Path, "sha256", sum)
		return nil
	}

	f, err := upload.FromPath(job.Path)
	if err != nil {
		return err
	}
	kind := upload.KindDocument
	if job.Receipt {
		kind = upload.KindReceipt
	}
	res, err := upload.NewSession(kind, u.api, u.opts...).QuickUpload(ctx, f)
	if err != nil {
		return fmt.Errorf("upload %s: %w", filepath.Base(job.Path), err)
	}

	u.mu.Lock()
	u.seen[sum] = struct{}{}
	u.mu.Unlock()

	var id int64
	switch {
	case res.Document != nil:
		id = res.Document.ID
	case res.Receipt != nil:
		id = res.Receipt.ID
	}
	u.logger.Info("ingest.upload.ok", "path", job.Path, "kind", kind, "id", id)
	return nil
}

func (u *Uploader) isSeen(sum string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.seen[sum]
	return ok
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Pump feeds watcher events into q until ctx is done or the watcher stops.
func Pump(ctx context.Context, events <-chan string, q async.Queue, r Router, logger *slog.Logger) error {
	logger = common.LoggerOrDefault(logger)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-events:
			if !ok {
				return nil
			}
			job := r.Job(p)
			if err := q.Enqueue(ctx, job); err != nil {
				logger.Warn("ingest.enqueue.fail", "path", p, "error", err)
				return err
			}
			logger.Info("ingest.enqueue.ok", "path", p, "receipt", job.Receipt, "trace_id", job.TraceID)
		}
	}
}
