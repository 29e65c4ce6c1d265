package inventory

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/keylinehq/keyline-backend/pkg/db/models"
	"github.com/keylinehq/keyline-backend/pkg/enums"
	pkgerrors "github.com/keylinehq/keyline-backend/pkg/errors"
	"github.com/keylinehq/keyline-backend/pkg/logger"
	"github.com/keylinehq/keyline-backend/pkg/storage"
)

// ExportOptions selects what an export stream contains and how it is framed.
type ExportOptions struct {
	Scope  enums.ExportScope
	Mode   enums.ExportMode
	Format enums.ExportFormat
	// Action is the audit event recorded for the stream, download or export.
	Action enums.InventoryAction
}

func (o *ExportOptions) applyDefaults() {
	if o.Scope == "" {
		o.Scope = enums.ExportScopeAvailable
	}
	if o.Mode == "" {
		o.Mode = enums.ExportModeFull
	}
	if o.Format == "" {
		o.Format = enums.ExportFormatTxt
	}
	if o.Action == "" {
		o.Action = enums.InventoryActionDownload
	}
}

func (o ExportOptions) validate() error {
	if !o.Scope.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid scope %q", o.Scope))
	}
	if !o.Mode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid mode %q", o.Mode))
	}
	if !o.Format.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid format %q", o.Format))
	}
	if o.Action != enums.InventoryActionDownload && o.Action != enums.InventoryActionExport {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid stream action %q", o.Action))
	}
	return nil
}

// LineView is one line of a batch as seen by the seller listing surface.
type LineView struct {
	BatchID uuid.UUID `json:"batchId"`
	Index   int       `json:"index"`
	Line    string    `json:"line"`
	Key     string    `json:"key"`
	Sold    bool      `json:"sold"`
}

// Streamer produces line-by-line exports of a product's inventory. Batches
// are visited oldest-first and one blob is held in memory at a time, so a
// large inventory never needs to be buffered whole.
type Streamer struct {
	repo   *Repository
	events *EventRepository
	store  storage.Store
	logg   *logger.Logger
}

// NewStreamer wires an export streamer.
func NewStreamer(repo *Repository, events *EventRepository, store storage.Store, logg *logger.Logger) *Streamer {
	return &Streamer{repo: repo, events: events, store: store, logg: logg}
}

// Stream writes the selected lines to w and returns how many were emitted.
func (s *Streamer) Stream(ctx context.Context, w io.Writer, productID, shopID uuid.UUID, opts ExportOptions) (int, error) {
	opts.applyDefaults()
	if err := opts.validate(); err != nil {
		return 0, err
	}

	var csvWriter *csv.Writer
	if opts.Format == enums.ExportFormatCSV {
		csvWriter = csv.NewWriter(w)
	}

	emit := func(line string) error {
		if opts.Mode == enums.ExportModeKeys {
			line = LineKey(line)
		}
		if csvWriter != nil {
			return csvWriter.Write([]string{line})
		}
		_, err := io.WriteString(w, line+"\n")
		return err
	}

	batches, err := s.repo.ListBatches(ctx, productID)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing inventory batches")
	}

	total := 0
	for _, batch := range batches {
		lines, err := s.batchLines(ctx, batch)
		if err != nil {
			return total, err
		}
		start := 0
		if opts.Scope == enums.ExportScopeAvailable {
			start = batch.ConsumedCount
			if start > len(lines) {
				start = len(lines)
			}
		}
		for _, line := range lines[start:] {
			if err := emit(line); err != nil {
				return total, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "writing export stream")
			}
			total++
		}
	}

	if csvWriter != nil {
		csvWriter.Flush()
		if err := csvWriter.Error(); err != nil {
			return total, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "flushing csv stream")
		}
	}

	if err := s.events.Append(ctx, productID, shopID, opts.Action, total, ""); err != nil {
		s.logg.Error(ctx, "appending stream event", err)
	}
	return total, nil
}

// Lines returns the seller-facing listing of a product's lines. With
// scope=all, previously sold lines are included and tagged.
func (s *Streamer) Lines(ctx context.Context, productID uuid.UUID, scope enums.ExportScope) ([]LineView, error) {
	if scope == "" {
		scope = enums.ExportScopeAvailable
	}
	if !scope.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid scope %q", scope))
	}

	batches, err := s.repo.ListBatches(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "listing inventory batches")
	}

	views := []LineView{}
	for _, batch := range batches {
		lines, err := s.batchLines(ctx, batch)
		if err != nil {
			return nil, err
		}
		for index, line := range lines {
			sold := index < batch.ConsumedCount
			if sold && scope == enums.ExportScopeAvailable {
				continue
			}
			views = append(views, LineView{
				BatchID: batch.ID,
				Index:   index,
				Line:    line,
				Key:     LineKey(line),
				Sold:    sold,
			})
		}
	}
	return views, nil
}

func (s *Streamer) batchLines(ctx context.Context, batch models.InventoryBatch) ([]string, error) {
	body, err := s.store.GetText(ctx, batch.BlobKey)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInventoryMissing, err,
				fmt.Sprintf("blob %s missing for batch %s", batch.BlobKey, batch.ID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading inventory blob")
	}
	return SplitLines(body), nil
}

// ExportFilename names the downloaded attachment for a product export.
func ExportFilename(productID uuid.UUID, opts ExportOptions) string {
	opts.applyDefaults()
	return fmt.Sprintf("inventory_%s_%s_%s.%s", productID, opts.Scope, opts.Mode, opts.Format)
}
