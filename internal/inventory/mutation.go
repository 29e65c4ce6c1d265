package inventory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
	"github.com/keylinehq/keyline-backend/pkg/enums"
	pkgerrors "github.com/keylinehq/keyline-backend/pkg/errors"
	"github.com/keylinehq/keyline-backend/pkg/logger"
	"github.com/keylinehq/keyline-backend/pkg/metrics"
	"github.com/keylinehq/keyline-backend/pkg/storage"
)

const (
	// DefaultMaxUploadBytes caps one uploaded inventory file at 5 MiB.
	DefaultMaxUploadBytes = 5 * 1024 * 1024
	// DefaultMaxLinesPerBatch caps one batch at 10k sellable lines.
	DefaultMaxLinesPerBatch = 10000

	blobContentType = "text/plain; charset=utf-8"
)

var allowedUploadExtensions = map[string]bool{
	".txt": true,
	".csv": true,
}

// MutationEngine owns every write to batch blobs: uploads create new batches,
// deletions rewrite or remove existing ones. Lines below the sold boundary
// are never re-examined or re-included by any rewrite.
type MutationEngine struct {
	repo       *Repository
	events     *EventRepository
	aggregator *Aggregator
	store      storage.Store
	logg       *logger.Logger
	metrics    *metrics.InventoryMetrics

	maxUploadBytes int64
	maxLines       int
}

// NewMutationEngine wires a mutation engine. Non-positive limits fall back to
// the defaults.
func NewMutationEngine(
	repo *Repository,
	events *EventRepository,
	aggregator *Aggregator,
	store storage.Store,
	logg *logger.Logger,
	m *metrics.InventoryMetrics,
	maxUploadBytes int64,
	maxLines int,
) *MutationEngine {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	if maxLines <= 0 {
		maxLines = DefaultMaxLinesPerBatch
	}
	return &MutationEngine{
		repo:           repo,
		events:         events,
		aggregator:     aggregator,
		store:          store,
		logg:           logg,
		metrics:        m,
		maxUploadBytes: maxUploadBytes,
		maxLines:       maxLines,
	}
}

// Upload validates the raw file, writes a fresh blob and creates its batch
// row. Validation rejects before any store mutation, so a failed upload
// leaves no partial writes behind.
func (m *MutationEngine) Upload(ctx context.Context, productID, shopID uuid.UUID, filename string, content []byte) (*models.InventoryBatch, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedUploadExtensions[ext] {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidFileType,
			fmt.Sprintf("unsupported file type %q, expected .txt or .csv", ext))
	}
	if int64(len(content)) > m.maxUploadBytes {
		return nil, pkgerrors.New(pkgerrors.CodeFileTooLarge,
			fmt.Sprintf("file is %d bytes, limit is %d", len(content), m.maxUploadBytes))
	}

	lines := SplitLines(string(content))
	if len(lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeEmptyFile, "file contains no inventory lines")
	}
	if len(lines) > m.maxLines {
		return nil, pkgerrors.New(pkgerrors.CodeTooManyLines,
			fmt.Sprintf("file has %d lines, limit is %d", len(lines), m.maxLines))
	}

	body := []byte(JoinLines(lines))
	batch := &models.InventoryBatch{
		ID:            uuid.New(),
		ProductID:     productID,
		LineCount:     len(lines),
		ConsumedCount: 0,
		BlobKey:       fmt.Sprintf("inventory/%s/%s.txt", productID, uuid.NewString()),
		BlobChecksum:  Checksum(body),
		Status:        enums.BatchStatusAvailable,
	}

	if err := m.store.Put(ctx, batch.BlobKey, body, blobContentType); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "writing inventory blob")
	}
	if err := m.repo.CreateBatch(ctx, batch); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating inventory batch")
	}

	if err := m.events.Append(ctx, productID, shopID, enums.InventoryActionUpload, len(lines), filename); err != nil {
		m.logg.Error(ctx, "appending upload event", err)
	}
	m.metrics.AddLinesMutated("upload", len(lines))

	if err := m.aggregator.Recompute(ctx, productID, shopID); err != nil {
		return nil, err
	}
	return batch, nil
}

// DeleteByCount removes the first n unsold lines across the product's
// batches, oldest batch first.
func (m *MutationEngine) DeleteByCount(ctx context.Context, productID, shopID uuid.UUID, n int) (int, error) {
	if n <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "count must be positive")
	}
	remaining := n
	return m.deleteLines(ctx, productID, shopID, func(unsold []string) ([]string, int) {
		if remaining <= 0 {
			return unsold, 0
		}
		drop := remaining
		if drop > len(unsold) {
			drop = len(unsold)
		}
		remaining -= drop
		return unsold[drop:], drop
	}, func() bool { return remaining <= 0 })
}

// DeleteByKeys removes unsold lines whose full text or key prefix matches
// one of the targets. Each target may match any number of lines.
func (m *MutationEngine) DeleteByKeys(ctx context.Context, productID, shopID uuid.UUID, keys []string) (int, error) {
	targets := make(map[string]bool, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key != "" {
			targets[key] = true
		}
	}
	if len(targets) == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "at least one line or key is required")
	}

	matched := make(map[string]bool, len(targets))
	return m.deleteLines(ctx, productID, shopID, func(unsold []string) ([]string, int) {
		var survivors []string
		dropped := 0
		for _, line := range unsold {
			switch {
			case targets[line]:
				matched[line] = true
				dropped++
			case targets[LineKey(line)]:
				matched[LineKey(line)] = true
				dropped++
			default:
				survivors = append(survivors, line)
			}
		}
		return survivors, dropped
	}, func() bool { return len(matched) == len(targets) })
}

// deleteLines walks batches oldest-first, applying the partition function to
// each batch's unsold window until done() reports the request is satisfied.
func (m *MutationEngine) deleteLines(
	ctx context.Context,
	productID, shopID uuid.UUID,
	partition func(unsold []string) (survivors []string, dropped int),
	done func() bool,
) (removed int, err error) {
	batches, err := m.repo.ListBatches(ctx, productID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing inventory batches")
	}

	mutated := false
	defer func() {
		// Counters must never wedge at a stale value: recompute whenever any
		// row changed, even when the operation is aborting with an error.
		if mutated {
			if aggErr := m.aggregator.Recompute(ctx, productID, shopID); aggErr != nil && err == nil {
				err = aggErr
			}
		}
	}()

	for _, batch := range batches {
		if done() {
			break
		}

		body, readErr := m.store.GetText(ctx, batch.BlobKey)
		if readErr != nil {
			if readErr == storage.ErrNotFound {
				return removed, pkgerrors.Wrap(pkgerrors.CodeInventoryMissing, readErr,
					fmt.Sprintf("blob %s missing for batch %s", batch.BlobKey, batch.ID))
			}
			return removed, pkgerrors.Wrap(pkgerrors.CodeDependency, readErr, "reading inventory blob")
		}

		lines := SplitLines(body)
		start := batch.ConsumedCount
		if start > len(lines) {
			start = len(lines)
		}
		survivors, dropped := partition(lines[start:])
		if dropped == 0 {
			continue
		}

		// Abort if a reservation advanced this batch between our read and the
		// rewrite: committing now would drop or reorder a line the buyer just
		// claimed.
		current, curErr := m.repo.CurrentConsumed(ctx, batch.ID)
		if curErr != nil {
			return removed, pkgerrors.Wrap(pkgerrors.CodeInternal, curErr, "re-reading consumed counter")
		}
		if current != batch.ConsumedCount {
			m.metrics.IncRewriteConflict()
			return removed, pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("batch %s was reserved from mid-deletion, retry", batch.ID))
		}

		if len(survivors) == 0 {
			if delErr := m.store.Delete(ctx, batch.BlobKey); delErr != nil {
				return removed, pkgerrors.Wrap(pkgerrors.CodeDependency, delErr, "deleting emptied blob")
			}
			if delErr := m.repo.DeleteBatch(ctx, batch.ID); delErr != nil {
				return removed, pkgerrors.Wrap(pkgerrors.CodeInternal, delErr, "deleting emptied batch")
			}
		} else {
			// Sold lines are dropped from the body wholesale, so index zero of
			// the rewritten blob is the first unsold line. Resetting the
			// consumed counter re-establishes that [0, lineCount) is unsold.
			newBody := []byte(JoinLines(survivors))
			if putErr := m.store.Put(ctx, batch.BlobKey, newBody, blobContentType); putErr != nil {
				return removed, pkgerrors.Wrap(pkgerrors.CodeDependency, putErr, "rewriting inventory blob")
			}
			if rwErr := m.repo.RewriteBatch(ctx, batch.ID, len(survivors), Checksum(newBody)); rwErr != nil {
				return removed, pkgerrors.Wrap(pkgerrors.CodeInternal, rwErr, "rewriting inventory batch")
			}
		}

		mutated = true
		removed += dropped
	}

	if removed == 0 {
		return 0, pkgerrors.New(pkgerrors.CodeNotFound, "no matching inventory lines to delete")
	}

	if evErr := m.events.Append(ctx, productID, shopID, enums.InventoryActionDelete, removed, ""); evErr != nil {
		m.logg.Error(ctx, "appending delete event", evErr)
	}
	m.metrics.AddLinesMutated("delete", removed)
	return removed, nil
}
