package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

func sampleProduct(id, name string, stock int32, createdAt time.Time) domain.Product {
	return domain.Product{
		ID:                id,
		Name:              name,
		PriceMinor:        250,
		StockLevel:        stock,
		MinimumStockLevel: 10,
		CreatedAt:         createdAt,
		UpdatedAt:         createdAt,
	}
}

func TestProductRepository_PostgresCreateGetAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)

	if err := repo.Create(sampleProduct("P001", "Paracetamol 500mg", 100, now)); err != nil {
		t.Fatalf("create product P001: %v", err)
	}
	if err := repo.Create(sampleProduct("P002", "Ibuprofen 200mg", 50, now)); err != nil {
		t.Fatalf("create product P002: %v", err)
	}

	got, err := repo.Get("P001")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Name != "Paracetamol 500mg" || got.StockLevel != 100 {
		t.Fatalf("unexpected product payload: %+v", got)
	}

	all, err := repo.List()
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(all) != 2 || all[0].ID != "P001" {
		t.Fatalf("unexpected product list: %+v", all)
	}
}

func TestProductRepository_PostgresStockAdjustments(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	if err := repo.Create(sampleProduct("P001", "Paracetamol 500mg", 100, now)); err != nil {
		t.Fatalf("create product: %v", err)
	}

	level, err := repo.AdjustStock("P001", -30)
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if level != 70 {
		t.Fatalf("expected stock 70, got %d", level)
	}

	level, err = repo.AdjustStock("P001", -200)
	if err != nil {
		t.Fatalf("adjust stock below zero: %v", err)
	}
	if level != 0 {
		t.Fatalf("expected stock floored at 0, got %d", level)
	}

	if err := repo.SetStock("P001", 40); err != nil {
		t.Fatalf("set stock: %v", err)
	}
	if err := repo.SetMinimumStock("P001", 25); err != nil {
		t.Fatalf("set minimum stock: %v", err)
	}

	got, err := repo.Get("P001")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.StockLevel != 40 || got.MinimumStockLevel != 25 {
		t.Fatalf("unexpected levels after updates: %+v", got)
	}
}

func TestProductRepository_PostgresErrors(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewProductRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleProduct("P010", "Amoxicillin 250mg", 10, now)

	if _, err := repo.Get("absent"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := repo.AdjustStock("absent", -1); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound on adjust, got %v", err)
	}
	if err := repo.SetStock("absent", 5); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound on set stock, got %v", err)
	}

	if err := repo.Create(base); err != nil {
		t.Fatalf("create base product: %v", err)
	}
	if err := repo.Create(base); !errors.Is(err, domain.ErrProductExists) {
		t.Fatalf("expected ErrProductExists on duplicate create, got %v", err)
	}

	if err := repo.SetStock("P010", -1); !errors.Is(err, domain.ErrStockNegative) {
		t.Fatalf("expected ErrStockNegative, got %v", err)
	}
	if err := repo.SetMinimumStock("P010", -1); !errors.Is(err, domain.ErrMinimumStockNegative) {
		t.Fatalf("expected ErrMinimumStockNegative, got %v", err)
	}
}
