package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/returnflow/internal/domain"
)

// UserRepository defines persistence access for customers.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
}

type userRepository struct {
	db querier
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{db: pool}
}

const userColumns = `id, name, email, phone, COALESCE(address, ''), return_count, account_age_days`

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id=$1`
	user, err := r.fetchSingle(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("user %s: %w", id, err)
	}
	return user, nil
}

func (r *userRepository) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users
        WHERE regexp_replace(phone, '[^0-9]', '', 'g') = $1
        ORDER BY id LIMIT 1`
	digits := normalizePhone(phone)
	if digits == "" {
		return nil, fmt.Errorf("user with phone %q: %w", phone, ErrNotFound)
	}
	user, err := r.fetchSingle(ctx, query, digits)
	if err != nil {
		return nil, fmt.Errorf("user with phone %q: %w", phone, err)
	}
	return user, nil
}

// lockForReturn locks the user row for the rest of the transaction so
// concurrent return creation for one user is serialized.
func (r *userRepository) lockForReturn(ctx context.Context, id string) error {
	const query = `SELECT id FROM users WHERE id=$1 FOR UPDATE`
	var locked string
	if err := r.db.QueryRow(ctx, query, id).Scan(&locked); err != nil {
		return fmt.Errorf("user %s: %w", id, mapErr(err))
	}
	return nil
}

func (r *userRepository) incrementReturnCount(ctx context.Context, id string) error {
	const query = `UPDATE users SET return_count = return_count + 1, updated_at = NOW() WHERE id=$1`
	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Phone,
		&user.Address,
		&user.ReturnCount,
		&user.AccountAgeDays,
	); err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}
