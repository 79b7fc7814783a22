// Package postgres holds the PostgreSQL-backed repositories.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/consultation-booking/internal/domain/payment"
	"github.com/consultation-booking/internal/platform/persistence"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// ManualPaymentRepository implements payment.ManualPaymentRepository for PostgreSQL
type ManualPaymentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

func NewManualPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.ManualPaymentRepository {
	return &ManualPaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create records a fallback booking. A second record for the same transaction id
// returns ErrDuplicateManualPayment.
func (r *ManualPaymentRepository) Create(ctx context.Context, mp *payment.ManualPayment) error {
	query := `
		INSERT INTO manual_payments (transaction_id, amount, service_id, service_title, customer_name, customer_email, deep_link, gateway_error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	err := r.querier.QueryRow(ctx, query,
		mp.TransactionID,
		mp.Amount,
		mp.ServiceID,
		mp.ServiceTitle,
		mp.CustomerName,
		mp.CustomerEmail,
		mp.DeepLink,
		mp.GatewayError,
		mp.CreatedAt,
	).Scan(&mp.ID)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return payment.ErrDuplicateManualPayment{TransactionID: mp.TransactionID}
		}
		r.logger.Error("Failed to create manual payment",
			"transaction_id", mp.TransactionID,
			"error", err,
		)
		return fmt.Errorf("failed to create manual payment: %w", err)
	}

	return nil
}

func (r *ManualPaymentRepository) GetByTransactionID(ctx context.Context, transactionID string) (*payment.ManualPayment, error) {
	query := `
		SELECT id, transaction_id, amount, service_id, service_title, customer_name, customer_email, deep_link, gateway_error, created_at, confirmation_sent_at
		FROM manual_payments
		WHERE transaction_id = $1
	`

	var mp payment.ManualPayment
	err := r.querier.QueryRow(ctx, query, transactionID).Scan(
		&mp.ID,
		&mp.TransactionID,
		&mp.Amount,
		&mp.ServiceID,
		&mp.ServiceTitle,
		&mp.CustomerName,
		&mp.CustomerEmail,
		&mp.DeepLink,
		&mp.GatewayError,
		&mp.CreatedAt,
		&mp.ConfirmationSentAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrManualPaymentNotFound{TransactionID: transactionID}
		}
		r.logger.Error("Failed to get manual payment",
			"transaction_id", transactionID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to get manual payment: %w", err)
	}

	return &mp, nil
}

func (r *ManualPaymentRepository) MarkConfirmationSent(ctx context.Context, transactionID string, at time.Time) (bool, error) {
	query := `
		UPDATE manual_payments
		SET confirmation_sent_at = $2
		WHERE transaction_id = $1 AND confirmation_sent_at IS NULL
	`

	result, err := r.querier.Exec(ctx, query, transactionID, at)
	if err != nil {
		r.logger.Error("Failed to mark manual payment confirmed",
			"transaction_id", transactionID,
			"error", err,
		)
		return false, fmt.Errorf("failed to mark manual payment confirmed: %w", err)
	}

	return result.RowsAffected() == 1, nil
}
