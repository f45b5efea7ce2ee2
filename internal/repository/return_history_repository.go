package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/returnflow/internal/domain"
)

// ReturnHistoryRepository stores audit entries of returns.
type ReturnHistoryRepository interface {
	Create(ctx context.Context, history *domain.ReturnHistory) error
	// ListByReturn returns the entries of a return oldest first.
	ListByReturn(ctx context.Context, returnID string) ([]domain.ReturnHistory, error)
}

type returnHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewReturnHistoryRepository builds the postgres repository.
func NewReturnHistoryRepository(pool *pgxpool.Pool) ReturnHistoryRepository {
	return &returnHistoryRepository{pool: pool}
}

func (r *returnHistoryRepository) Create(ctx context.Context, history *domain.ReturnHistory) error {
	stampHistory(history, time.Now)
	const query = `
        INSERT INTO return_history (id, return_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.pool.Exec(ctx, query,
		history.ID,
		history.ReturnID,
		history.ChangedByType,
		history.ChangedByID,
		history.ChangeType,
		history.OldValue,
		history.NewValue,
		history.CreatedAt,
	)
	return mapErr(err)
}

func (r *returnHistoryRepository) ListByReturn(ctx context.Context, returnID string) ([]domain.ReturnHistory, error) {
	const query = `
        SELECT id, return_id, changed_by_type, changed_by_id, change_type, old_value, new_value, created_at
        FROM return_history WHERE return_id=$1 ORDER BY created_at ASC, id ASC`
	rows, err := r.pool.Query(ctx, query, returnID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ReturnHistory
	for rows.Next() {
		var history domain.ReturnHistory
		if err := rows.Scan(
			&history.ID,
			&history.ReturnID,
			&history.ChangedByType,
			&history.ChangedByID,
			&history.ChangeType,
			&history.OldValue,
			&history.NewValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, history)
	}
	return result, rows.Err()
}

// MemoryHistoryRepository keeps history entries in process memory.
type MemoryHistoryRepository struct {
	mu      sync.RWMutex
	entries map[string][]domain.ReturnHistory
	now     func() time.Time
}

// NewMemoryHistoryRepository returns an empty repository.
func NewMemoryHistoryRepository() *MemoryHistoryRepository {
	return &MemoryHistoryRepository{entries: make(map[string][]domain.ReturnHistory), now: time.Now}
}

func (r *MemoryHistoryRepository) Create(_ context.Context, history *domain.ReturnHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stampHistory(history, r.now)
	r.entries[history.ReturnID] = append(r.entries[history.ReturnID], *history)
	return nil
}

func (r *MemoryHistoryRepository) ListByReturn(_ context.Context, returnID string) ([]domain.ReturnHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.ReturnHistory(nil), r.entries[returnID]...), nil
}

func stampHistory(history *domain.ReturnHistory, now func() time.Time) {
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	if history.CreatedAt.IsZero() {
		history.CreatedAt = now()
	}
}
