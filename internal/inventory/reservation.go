package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/keylinehq/keyline-backend/pkg/errors"
	"github.com/keylinehq/keyline-backend/pkg/logger"
	"github.com/keylinehq/keyline-backend/pkg/metrics"
	"github.com/keylinehq/keyline-backend/pkg/storage"
)

// DefaultReservationAttempts bounds the optimistic-concurrency loop.
const DefaultReservationAttempts = 5

// Claim is the outcome of a successful reservation: exactly one line,
// claimed at most once across all concurrent buyers.
type Claim struct {
	BatchID   uuid.UUID
	LineIndex int
	BlobKey   string
	Line      string
	Key       string
}

// ReservationEngine claims one unsold line per call, visiting batches
// oldest-first. The conditional update in the repository is the only
// coordination used; no locks and no multi-statement transactions.
type ReservationEngine struct {
	repo     *Repository
	store    storage.Store
	logg     *logger.Logger
	metrics  *metrics.InventoryMetrics
	attempts int
}

// NewReservationEngine wires a reservation engine. attempts <= 0 falls back
// to the default ceiling.
func NewReservationEngine(repo *Repository, store storage.Store, logg *logger.Logger, m *metrics.InventoryMetrics, attempts int) *ReservationEngine {
	if attempts <= 0 {
		attempts = DefaultReservationAttempts
	}
	return &ReservationEngine{
		repo:     repo,
		store:    store,
		logg:     logg,
		metrics:  m,
		attempts: attempts,
	}
}

// Reserve claims the oldest unsold line of the product. Under heavy
// contention the attempt ceiling can fire while stock still exists; that is
// surfaced as out-of-stock and the buyer may retry.
func (e *ReservationEngine) Reserve(ctx context.Context, productID uuid.UUID) (*Claim, error) {
	started := time.Now()
	claim, err := e.reserve(ctx, productID)
	e.metrics.ObserveReservation(reservationResult(err), time.Since(started))
	e.metrics.IncReservation(reservationResult(err))
	return claim, err
}

func (e *ReservationEngine) reserve(ctx context.Context, productID uuid.UUID) (*Claim, error) {
	for attempt := 0; attempt < e.attempts; attempt++ {
		batch, err := e.repo.FindOldestAvailable(ctx, productID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up available batch")
		}
		if batch == nil {
			return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "no unsold inventory lines for product")
		}

		index := batch.ConsumedCount
		won, err := e.repo.ClaimNext(ctx, batch.ID, index)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "claiming inventory line")
		}
		if !won {
			// Another reservation advanced the counter between our read and
			// write. Re-read and try again; the same batch may still win.
			e.metrics.IncClaimAttempt("conflict")
			continue
		}
		e.metrics.IncClaimAttempt("won")

		claim, err := e.resolveLine(ctx, batch.BlobKey, batch.ID, index)
		if err != nil {
			// The unit is already consumed in the metadata store. There is no
			// compensating rollback: surface the desync loudly and leave the
			// row for administrative remediation.
			e.logg.Error(ctx, "claimed line could not be resolved from blob", err)
			return nil, err
		}

		if index+1 >= batch.LineCount {
			if err := e.repo.MarkSoldOut(ctx, batch.ID); err != nil {
				e.logg.Error(ctx, "marking batch sold out", err)
			}
		}
		return claim, nil
	}

	return nil, pkgerrors.New(pkgerrors.CodeOutOfStock, "reservation attempts exhausted under contention")
}

func (e *ReservationEngine) resolveLine(ctx context.Context, blobKey string, batchID uuid.UUID, index int) (*Claim, error) {
	body, err := e.store.GetText(ctx, blobKey)
	if err != nil {
		if err == storage.ErrNotFound {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInventoryMissing, err,
				fmt.Sprintf("blob %s missing for batch %s", blobKey, batchID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading inventory blob")
	}

	lines := SplitLines(body)
	line, ok := LineAt(lines, index)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeInventoryInvalid,
			fmt.Sprintf("batch %s has no line at claimed index %d", batchID, index))
	}

	return &Claim{
		BatchID:   batchID,
		LineIndex: index,
		BlobKey:   blobKey,
		Line:      line,
		Key:       LineKey(line),
	}, nil
}

func reservationResult(err error) string {
	switch {
	case err == nil:
		return "delivered"
	case pkgerrors.HasCode(err, pkgerrors.CodeOutOfStock):
		return "out_of_stock"
	default:
		return "error"
	}
}
