package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

type productRepository struct {
	db *sql.DB
}

// NewProductRepository создаёт PostgreSQL-реализацию ProductRepository.
func NewProductRepository(store *Store) domain.ProductRepository {
	return &productRepository{db: store.DB()}
}

func (r *productRepository) Create(p domain.Product) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (
			id, name, price_minor, stock_level, minimum_stock_level, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7)
	`,
		p.ID, p.Name, p.PriceMinor, p.StockLevel, p.MinimumStockLevel, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrProductExists
		}
		return fmt.Errorf("insert product: %w", err)
	}

	return nil
}

func (r *productRepository) Get(id string) (domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price_minor, stock_level, minimum_stock_level, created_at, updated_at
		FROM products
		WHERE id = $1
	`, id).Scan(
		&p.ID, &p.Name, &p.PriceMinor, &p.StockLevel, &p.MinimumStockLevel, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Product{}, domain.ErrProductNotFound
		}
		return domain.Product{}, fmt.Errorf("select product: %w", err)
	}

	return p, nil
}

func (r *productRepository) List() ([]domain.Product, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price_minor, stock_level, minimum_stock_level, created_at, updated_at
		FROM products
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(
			&p.ID, &p.Name, &p.PriceMinor, &p.StockLevel, &p.MinimumStockLevel, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan product row: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate product rows: %w", err)
	}

	return products, nil
}

func (r *productRepository) SetStock(id string, level int32) error {
	if level < 0 {
		return domain.ErrStockNegative
	}
	return r.updateLevel(id, `stock_level`, level)
}

// AdjustStock атомарно меняет остаток с полом в ноль одним UPDATE,
// поэтому конкурентные списания не теряются.
func (r *productRepository) AdjustStock(id string, delta int32) (int32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	var level int32
	err := r.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock_level = GREATEST(stock_level + $1, 0),
		    updated_at = $2
		WHERE id = $3
		RETURNING stock_level
	`, delta, time.Now().UTC(), id).Scan(&level)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrProductNotFound
		}
		return 0, fmt.Errorf("adjust stock: %w", err)
	}

	return level, nil
}

func (r *productRepository) SetMinimumStock(id string, level int32) error {
	if level < 0 {
		return domain.ErrMinimumStockNegative
	}
	return r.updateLevel(id, `minimum_stock_level`, level)
}

func (r *productRepository) updateLevel(id, column string, level int32) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// column ограничен фиксированным набором вызовов внутри пакета.
	res, err := r.db.ExecContext(ctx, fmt.Sprintf(`
		UPDATE products
		SET %s = $1,
		    updated_at = $2
		WHERE id = $3
	`, column), level, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update product %s: %w", column, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.ErrProductNotFound
	}

	return nil
}

var _ domain.ProductRepository = (*productRepository)(nil)
