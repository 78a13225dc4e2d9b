package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// BatchInserter provides bulk insert via the COPY protocol.
// Noticeably faster than individual INSERTs from ~1000 rows up,
// used by the seeder and by movement journal writes.
type BatchInserter struct {
	txManager *TxManager
}

// NewBatchInserter creates a new batch inserter.
func NewBatchInserter(txManager *TxManager) *BatchInserter {
	return &BatchInserter{txManager: txManager}
}

// CopyFromSlice performs bulk insert from a slice of rows.
// Each row is []any matching the columns order. Requires an active
// transaction in ctx.
func (b *BatchInserter) CopyFromSlice(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyFromSlice requires transaction context")
	}

	return tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromRows(rows))
}

// CopyFromRows performs bulk insert streaming rows from a channel.
//
// Example:
//
//	rows := make(chan []any, 100)
//	go func() {
//	    for _, m := range movements {
//	        rows <- []any{m.LineID, m.RecorderID, m.Quantity}
//	    }
//	    close(rows)
//	}()
//	n, err := inserter.CopyFromRows(ctx, "stock_movements", cols, rows)
func (b *BatchInserter) CopyFromRows(ctx context.Context, table string, columns []string, rows <-chan []any) (int64, error) {
	tx := b.txManager.GetTx(ctx)
	if tx == nil {
		return 0, fmt.Errorf("CopyFromRows requires transaction context")
	}

	source := &channelCopyFromSource{rows: rows}
	return tx.CopyFrom(ctx, pgx.Identifier{table}, columns, source)
}

// channelCopyFromSource adapts a channel to pgx.CopyFromSource.
type channelCopyFromSource struct {
	rows    <-chan []any
	current []any
}

func (s *channelCopyFromSource) Next() bool {
	row, ok := <-s.rows
	if !ok {
		return false
	}
	s.current = row
	return true
}

func (s *channelCopyFromSource) Values() ([]any, error) {
	return s.current, nil
}

func (s *channelCopyFromSource) Err() error {
	return nil
}

// BatchQuery represents one query in a batch.
type BatchQuery struct {
	SQL  string
	Args []any
}

// BatchExecutor executes multiple statements in a single round-trip.
type BatchExecutor struct {
	txManager *TxManager
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(txManager *TxManager) *BatchExecutor {
	return &BatchExecutor{txManager: txManager}
}

// ExecuteBatch queues all queries and executes them within the current
// transaction.
func (e *BatchExecutor) ExecuteBatch(ctx context.Context, queries []BatchQuery) error {
	tx := e.txManager.GetTx(ctx)
	if tx == nil {
		return fmt.Errorf("ExecuteBatch requires transaction context")
	}

	batch := &pgx.Batch{}
	for _, q := range queries {
		batch.Queue(q.SQL, q.Args...)
	}

	results := tx.SendBatch(ctx, batch)
	defer results.Close()

	for range queries {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("batch query failed: %w", err)
		}
	}

	return nil
}
