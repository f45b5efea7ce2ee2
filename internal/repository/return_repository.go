package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/returnflow/internal/domain"
)

// ReturnRepository defines persistence access for return requests and their
// tracking records.
type ReturnRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ReturnRequest, error)
	ListByUser(ctx context.Context, userID string) ([]domain.ReturnRequest, error)
	CreateTracking(ctx context.Context, info *domain.TrackingInfo) error
	GetTracking(ctx context.Context, trackingNumber string) (*domain.TrackingInfo, error)
}

type returnRepository struct {
	db querier
}

// NewReturnRepository returns a Postgres-backed implementation.
func NewReturnRepository(pool *pgxpool.Pool) ReturnRepository {
	return &returnRepository{db: pool}
}

const returnColumns = `id, order_id, user_id, item_id, reason, status, created_at, updated_at,
               refund_amount, COALESCE(notes, ''), COALESCE(label_url, ''), COALESCE(qr_code_url, ''),
               COALESCE(tracking_number, ''), fraud_risk_score`

func (r *returnRepository) create(ctx context.Context, req *domain.ReturnRequest) error {
	const query = `
        INSERT INTO returns (id, order_id, user_id, item_id, reason, status, refund_amount, notes,
                             label_url, qr_code_url, tracking_number, fraud_risk_score, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12, $13, $13)`

	_, err := r.db.Exec(ctx, query,
		req.ID,
		req.OrderID,
		req.UserID,
		req.ItemID,
		req.Reason,
		req.Status,
		req.RefundAmount,
		req.Notes,
		req.LabelURL,
		req.QRCodeURL,
		req.TrackingNumber,
		req.FraudRiskScore,
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("return %s: %w", req.ID, mapErr(err))
	}
	req.UpdatedAt = req.CreatedAt
	return nil
}

// activeForItem returns the id of an open return for the order item, or "".
func (r *returnRepository) activeForItem(ctx context.Context, orderID, itemID string) (string, error) {
	const query = `
        SELECT id FROM returns
        WHERE order_id=$1 AND item_id=$2 AND status <> 'rejected'
        ORDER BY created_at LIMIT 1`

	var id string
	err := r.db.QueryRow(ctx, query, orderID, itemID).Scan(&id)
	if err = mapErr(err); errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return id, err
}

func (r *returnRepository) GetByID(ctx context.Context, id string) (*domain.ReturnRequest, error) {
	const query = `SELECT ` + returnColumns + ` FROM returns WHERE id=$1`
	ret, err := r.fetchSingle(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("return %s: %w", id, err)
	}
	return ret, nil
}

func (r *returnRepository) getForUpdate(ctx context.Context, id string) (*domain.ReturnRequest, error) {
	const query = `SELECT ` + returnColumns + ` FROM returns WHERE id=$1 FOR UPDATE`
	ret, err := r.fetchSingle(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("return %s: %w", id, err)
	}
	return ret, nil
}

func (r *returnRepository) setStatus(ctx context.Context, ret *domain.ReturnRequest) error {
	const query = `UPDATE returns SET status=$1, updated_at=NOW() WHERE id=$2 RETURNING updated_at`
	if err := r.db.QueryRow(ctx, query, ret.Status, ret.ID).Scan(&ret.UpdatedAt); err != nil {
		return fmt.Errorf("return %s: %w", ret.ID, mapErr(err))
	}
	return nil
}

func (r *returnRepository) ListByUser(ctx context.Context, userID string) ([]domain.ReturnRequest, error) {
	const query = `SELECT ` + returnColumns + ` FROM returns WHERE user_id=$1 ORDER BY created_at, id`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.ReturnRequest, 0)
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *ret)
	}
	return out, rows.Err()
}

func (r *returnRepository) CreateTracking(ctx context.Context, info *domain.TrackingInfo) error {
	const query = `
        INSERT INTO tracking (tracking_number, carrier, status, last_update, estimated_delivery, current_location)
        VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))`

	_, err := r.db.Exec(ctx, query,
		info.TrackingNumber,
		info.Carrier,
		info.Status,
		info.LastUpdate,
		info.EstimatedDelivery,
		info.CurrentLocation,
	)
	if err != nil {
		return fmt.Errorf("tracking %s: %w", info.TrackingNumber, mapErr(err))
	}
	return nil
}

func (r *returnRepository) GetTracking(ctx context.Context, trackingNumber string) (*domain.TrackingInfo, error) {
	const query = `
        SELECT tracking_number, carrier, status, last_update, estimated_delivery, COALESCE(current_location, '')
        FROM tracking WHERE tracking_number=$1`

	var info domain.TrackingInfo
	if err := r.db.QueryRow(ctx, query, trackingNumber).Scan(
		&info.TrackingNumber,
		&info.Carrier,
		&info.Status,
		&info.LastUpdate,
		&info.EstimatedDelivery,
		&info.CurrentLocation,
	); err != nil {
		return nil, fmt.Errorf("tracking %s: %w", trackingNumber, mapErr(err))
	}
	return &info, nil
}

func (r *returnRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.ReturnRequest, error) {
	ret, err := scanReturn(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapErr(err)
	}
	return ret, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReturn(row rowScanner) (*domain.ReturnRequest, error) {
	var ret domain.ReturnRequest
	if err := row.Scan(
		&ret.ID,
		&ret.OrderID,
		&ret.UserID,
		&ret.ItemID,
		&ret.Reason,
		&ret.Status,
		&ret.CreatedAt,
		&ret.UpdatedAt,
		&ret.RefundAmount,
		&ret.Notes,
		&ret.LabelURL,
		&ret.QRCodeURL,
		&ret.TrackingNumber,
		&ret.FraudRiskScore,
	); err != nil {
		return nil, err
	}
	return &ret, nil
}
