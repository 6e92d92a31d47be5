package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

type merchantRepository struct {
	db *sql.DB
}

// NewMerchantRepository создаёт PostgreSQL-реализацию MerchantRepository.
func NewMerchantRepository(store *Store) domain.MerchantRepository {
	return &merchantRepository{db: store.DB()}
}

func (r *merchantRepository) Create(m domain.Merchant) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO merchants (
			id, name, address, credit_limit_minor, balance_minor, status, version, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		m.ID, m.Name, m.Address, m.CreditLimitMinor, m.BalanceMinor,
		string(m.Status), m.Version, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrMerchantExists
		}
		return fmt.Errorf("insert merchant: %w", err)
	}

	return nil
}

func (r *merchantRepository) Get(id string) (domain.Merchant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var m domain.Merchant
	var status string

	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, address, credit_limit_minor, balance_minor, status, version, created_at, updated_at
		FROM merchants
		WHERE id = $1
	`, id).Scan(
		&m.ID, &m.Name, &m.Address, &m.CreditLimitMinor, &m.BalanceMinor,
		&status, &m.Version, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Merchant{}, domain.ErrMerchantNotFound
		}
		return domain.Merchant{}, fmt.Errorf("select merchant: %w", err)
	}
	m.Status = domain.MerchantStatus(status)

	return m, nil
}

func (r *merchantRepository) List() ([]domain.Merchant, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, address, credit_limit_minor, balance_minor, status, version, created_at, updated_at
		FROM merchants
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list merchants: %w", err)
	}
	defer rows.Close()

	merchants := make([]domain.Merchant, 0)
	for rows.Next() {
		var m domain.Merchant
		var status string
		if err := rows.Scan(
			&m.ID, &m.Name, &m.Address, &m.CreditLimitMinor, &m.BalanceMinor,
			&status, &m.Version, &m.CreatedAt, &m.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan merchant row: %w", err)
		}
		m.Status = domain.MerchantStatus(status)
		merchants = append(merchants, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate merchant rows: %w", err)
	}

	return merchants, nil
}

func (r *merchantRepository) Save(m domain.Merchant) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	res, err := r.db.ExecContext(ctx, `
		UPDATE merchants
		SET name = $1,
		    address = $2,
		    credit_limit_minor = $3,
		    balance_minor = $4,
		    status = $5,
		    version = version + 1,
		    updated_at = $6
		WHERE id = $7
		  AND version = $8
	`,
		m.Name, m.Address, m.CreditLimitMinor, m.BalanceMinor,
		string(m.Status), m.UpdatedAt, m.ID, m.Version,
	)
	if err != nil {
		return fmt.Errorf("update merchant: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		exists, err := r.exists(ctx, m.ID)
		if err != nil {
			return err
		}
		if !exists {
			return domain.ErrMerchantNotFound
		}
		return domain.ErrVersionConflict
	}

	return nil
}

func (r *merchantRepository) exists(ctx context.Context, id string) (bool, error) {
	var found string
	err := r.db.QueryRowContext(ctx, `SELECT id FROM merchants WHERE id = $1`, id).Scan(&found)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, fmt.Errorf("check merchant exists: %w", err)
}

var _ domain.MerchantRepository = (*merchantRepository)(nil)
