package domain

import "time"

// Product описывает позицию аптечного каталога со складским остатком.
type Product struct {
	ID   string
	Name string
	// PriceMinor — отпускная цена за единицу в минимальных денежных единицах.
	PriceMinor int64
	// StockLevel — текущий остаток на складе; никогда не уходит в минус.
	StockLevel int32
	// MinimumStockLevel — порог, ниже которого позиция считается low stock.
	MinimumStockLevel int32
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ValidateInvariants проверяет корректность полей товара.
func (p *Product) ValidateInvariants() []error {
	var errs []error

	if p.ID == "" {
		errs = append(errs, ErrProductIDRequired)
	}
	if p.Name == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.PriceMinor < 0 {
		errs = append(errs, ErrProductPriceNegative)
	}
	if p.StockLevel < 0 {
		errs = append(errs, ErrStockNegative)
	}
	if p.MinimumStockLevel < 0 {
		errs = append(errs, ErrMinimumStockNegative)
	}

	return errs
}

// LowStock сообщает, опустился ли остаток ниже минимального порога.
func (p *Product) LowStock() bool {
	return p.StockLevel < p.MinimumStockLevel
}
