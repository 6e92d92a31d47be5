package domain_test

import (
	"testing"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

func makeProduct() domain.Product {
	return domain.Product{
		ID:                "P001",
		Name:              "Paracetamol 500mg",
		PriceMinor:        250,
		StockLevel:        100,
		MinimumStockLevel: 10,
	}
}

func TestProductValidateInvariants_Ok(t *testing.T) {
	product := makeProduct()
	if errs := product.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestProductValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(p *domain.Product)
	}{
		{
			name: "no id",
			mut: func(p *domain.Product) {
				p.ID = ""
			},
		},
		{
			name: "no name",
			mut: func(p *domain.Product) {
				p.Name = ""
			},
		},
		{
			name: "negative price",
			mut: func(p *domain.Product) {
				p.PriceMinor = -1
			},
		},
		{
			name: "negative stock",
			mut: func(p *domain.Product) {
				p.StockLevel = -1
			},
		},
		{
			name: "negative minimum stock",
			mut: func(p *domain.Product) {
				p.MinimumStockLevel = -1
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			product := makeProduct()
			tc.mut(&product)

			if len(product.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}

func TestProductLowStock(t *testing.T) {
	cases := []struct {
		name    string
		stock   int32
		minimum int32
		want    bool
	}{
		{name: "above minimum", stock: 11, minimum: 10, want: false},
		{name: "at minimum", stock: 10, minimum: 10, want: false},
		{name: "below minimum", stock: 9, minimum: 10, want: true},
		{name: "zero stock", stock: 0, minimum: 10, want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			product := makeProduct()
			product.StockLevel = tc.stock
			product.MinimumStockLevel = tc.minimum

			if got := product.LowStock(); got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
