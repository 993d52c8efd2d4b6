package tracesvc

import (
	"context"
	"fmt"

	"github.com/nigoertz/demo-cosmos-api/internal/store"
)

// fieldTransaction is the document field steps and snapshots use to name
// their parent transaction.
const fieldTransaction = "transaction"

// Service assembles transaction views from the transaction, step and
// snapshot stores.
type Service struct {
	transactions *store.Store
	steps        *store.Store
	snapshots    *store.Store
}

// New returns a Service over the three stores.
func New(transactions, steps, snapshots *store.Store) *Service {
	return &Service{transactions: transactions, steps: steps, snapshots: snapshots}
}

// attachSteps joins the steps referencing the transaction onto the document.
// A transaction with no resident steps gets an empty list.
func (s *Service) attachSteps(ctx context.Context, tx map[string]any) error {
	id, _ := tx["id"].(string)
	steps, err := s.steps.ListByField(ctx, fieldTransaction, id, 0)
	if err != nil {
		return err
	}
	tx["steps"] = steps
	return nil
}

// GetTransactionWithSteps returns the transaction and every resident step
// referencing it. An unknown id propagates the store's not-found error;
// zero steps is a success with an empty list.
func (s *Service) GetTransactionWithSteps(ctx context.Context, id string) (map[string]any, error) {
	tx, err := s.transactions.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.attachSteps(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}

// ListTransactionsWithSteps pages the transaction store and attaches steps
// to each returned transaction. The page and the per-transaction lookups
// are independent reads with no snapshot between them.
func (s *Service) ListTransactionsWithSteps(ctx context.Context, count, offset int) ([]map[string]any, error) {
	txs, err := s.transactions.ListPaged(ctx, offset, count)
	if err != nil {
		return nil, err
	}
	for _, tx := range txs {
		if err := s.attachSteps(ctx, tx); err != nil {
			return nil, err
		}
	}
	return txs, nil
}

// SnapshotsForTransaction returns the snapshots referencing the transaction.
// Unlike the store's own filter contract, this endpoint treats zero matches
// as absence: no snapshots means not found.
func (s *Service) SnapshotsForTransaction(ctx context.Context, id string) ([]map[string]any, error) {
	snaps, err := s.snapshots.ListByField(ctx, fieldTransaction, id, 0)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("no snapshots for transaction %q: %w", id, store.ErrNotFound)
	}
	return snaps, nil
}
