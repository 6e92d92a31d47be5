package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

type paymentRepository struct {
	db *sql.DB
}

// NewPaymentRepository создаёт PostgreSQL-реализацию PaymentRepository.
// История платежей append-only: таблица не обновляется и не чистится.
func NewPaymentRepository(store *Store) domain.PaymentRepository {
	return &paymentRepository{db: store.DB()}
}

func (r *paymentRepository) Append(p domain.Payment) error {
	if errs := p.Validate(); len(errs) > 0 {
		return errs[0]
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO payments (id, merchant_id, amount_minor, paid_at)
		VALUES ($1,$2,$3,$4)
	`, p.ID, p.MerchantID, p.AmountMinor, p.Date)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}

	return nil
}

func (r *paymentRepository) ListByMerchant(merchantID string) ([]domain.Payment, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, merchant_id, amount_minor, paid_at
		FROM payments
		WHERE merchant_id = $1
		ORDER BY seq ASC
	`, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.MerchantID, &p.AmountMinor, &p.Date); err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate payment rows: %w", err)
	}

	return payments, nil
}

var _ domain.PaymentRepository = (*paymentRepository)(nil)
