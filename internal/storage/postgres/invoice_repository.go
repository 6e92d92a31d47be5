package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

type invoiceRepository struct {
	db *sql.DB
}

// NewInvoiceRepository создаёт PostgreSQL-реализацию InvoiceRepository.
// Уникальность счёта на заказ обеспечивает UNIQUE-констрейнт order_id.
func NewInvoiceRepository(store *Store) domain.InvoiceRepository {
	return &invoiceRepository{db: store.DB()}
}

func (r *invoiceRepository) Create(inv domain.Invoice) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO invoices (
			id, order_id, merchant_id, issue_date, due_date, total_amount_minor, status, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		inv.ID, inv.OrderID, inv.MerchantID, inv.IssueDate, inv.DueDate,
		inv.TotalAmountMinor, string(inv.Status), inv.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrInvoiceExists
		}
		return fmt.Errorf("insert invoice: %w", err)
	}

	return nil
}

func (r *invoiceRepository) Get(id string) (domain.Invoice, error) {
	return r.getBy(`id`, id)
}

func (r *invoiceRepository) GetByOrder(orderID string) (domain.Invoice, error) {
	return r.getBy(`order_id`, orderID)
}

func (r *invoiceRepository) getBy(column, value string) (domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var inv domain.Invoice
	var status string

	// column ограничен фиксированным набором вызовов внутри пакета.
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT id, order_id, merchant_id, issue_date, due_date, total_amount_minor, status, created_at
		FROM invoices
		WHERE %s = $1
	`, column), value).Scan(
		&inv.ID, &inv.OrderID, &inv.MerchantID, &inv.IssueDate, &inv.DueDate,
		&inv.TotalAmountMinor, &status, &inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Invoice{}, domain.ErrInvoiceNotFound
		}
		return domain.Invoice{}, fmt.Errorf("select invoice: %w", err)
	}
	inv.Status = domain.InvoiceStatus(status)

	return inv, nil
}

func (r *invoiceRepository) ListByMerchant(merchantID string) ([]domain.Invoice, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, merchant_id, issue_date, due_date, total_amount_minor, status, created_at
		FROM invoices
		WHERE merchant_id = $1
		ORDER BY id ASC
	`, merchantID)
	if err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	defer rows.Close()

	invoices := make([]domain.Invoice, 0)
	for rows.Next() {
		var inv domain.Invoice
		var status string
		if err := rows.Scan(
			&inv.ID, &inv.OrderID, &inv.MerchantID, &inv.IssueDate, &inv.DueDate,
			&inv.TotalAmountMinor, &status, &inv.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan invoice row: %w", err)
		}
		inv.Status = domain.InvoiceStatus(status)
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invoice rows: %w", err)
	}

	return invoices, nil
}

var _ domain.InvoiceRepository = (*invoiceRepository)(nil)
