package catalog

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

// DefaultMinimumStockLevel — минимальный складской порог по умолчанию.
const DefaultMinimumStockLevel int32 = 10

// AddProductParams описывает заявку на добавление товара.
// Нулевой MinimumStockLevel означает порог по умолчанию.
type AddProductParams struct {
	ID                string
	Name              string
	PriceMinor        int64
	StockLevel        int32
	MinimumStockLevel *int32
}

// Catalog описывает интерфейс каталога товаров.
type Catalog interface {
	// AddProduct добавляет товар в каталог.
	AddProduct(params AddProductParams) (domain.Product, error)
	// GetProduct возвращает товар по идентификатору.
	GetProduct(productID string) (domain.Product, error)
	// ListProducts возвращает все товары каталога.
	ListProducts() ([]domain.Product, error)
	// SearchProducts ищет товары по подстроке названия без учёта регистра.
	SearchProducts(query string) ([]domain.Product, error)
	// SetStock выставляет абсолютный складской остаток.
	SetStock(productID string, level int32) error
	// AddStock пополняет остаток и возвращает новое значение.
	AddStock(productID string, qty int32) (int32, error)
	// SetMinimumStockLevel выставляет минимальный порог остатка.
	SetMinimumStockLevel(productID string, level int32) error
	// LowStockProducts возвращает товары с остатком ниже порога.
	LowStockProducts() ([]domain.Product, error)
}

// catalog реализует каталог поверх ProductRepository. Складские мутации
// атомарны на уровне хранилища, отдельной сериализации не требуется.
type catalog struct {
	products domain.ProductRepository
	logger   *log.Entry
}

// New создаёт каталог товаров.
func New(products domain.ProductRepository, logger *log.Entry) Catalog {
	if logger == nil {
		logger = log.New().WithField("component", "catalog")
	}
	return &catalog{
		products: products,
		logger:   logger,
	}
}

// AddProduct добавляет товар: порог остатка из заявки либо
// DefaultMinimumStockLevel.
func (c *catalog) AddProduct(params AddProductParams) (domain.Product, error) {
	now := time.Now().UTC()
	product := domain.Product{
		ID:                strings.TrimSpace(params.ID),
		Name:              strings.TrimSpace(params.Name),
		PriceMinor:        params.PriceMinor,
		StockLevel:        params.StockLevel,
		MinimumStockLevel: DefaultMinimumStockLevel,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if params.MinimumStockLevel != nil {
		product.MinimumStockLevel = *params.MinimumStockLevel
	}

	if errs := product.ValidateInvariants(); len(errs) > 0 {
		return domain.Product{}, errs[0]
	}

	if err := c.products.Create(product); err != nil {
		c.logger.WithError(err).WithField("product_id", product.ID).Warn("product registration failed")
		return domain.Product{}, err
	}

	c.logger.WithFields(log.Fields{
		"product_id":  product.ID,
		"price_minor": product.PriceMinor,
		"stock_level": product.StockLevel,
	}).Info("product added to catalog")

	return product, nil
}

// GetProduct возвращает товар по идентификатору.
func (c *catalog) GetProduct(productID string) (domain.Product, error) {
	if productID == "" {
		return domain.Product{}, domain.ErrProductIDRequired
	}
	return c.products.Get(productID)
}

// ListProducts возвращает все товары каталога.
func (c *catalog) ListProducts() ([]domain.Product, error) {
	return c.products.List()
}

// SearchProducts ищет товары по подстроке названия без учёта регистра.
// Пустой запрос возвращает весь каталог.
func (c *catalog) SearchProducts(query string) ([]domain.Product, error) {
	products, err := c.products.List()
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return products, nil
	}

	matched := make([]domain.Product, 0, len(products))
	for _, product := range products {
		if strings.Contains(strings.ToLower(product.Name), query) {
			matched = append(matched, product)
		}
	}
	return matched, nil
}

// SetStock выставляет абсолютный складской остаток.
func (c *catalog) SetStock(productID string, level int32) error {
	if productID == "" {
		return domain.ErrProductIDRequired
	}
	if err := c.products.SetStock(productID, level); err != nil {
		return err
	}

	c.logger.WithFields(log.Fields{
		"product_id":  productID,
		"stock_level": level,
	}).Info("stock level set")

	return nil
}

// AddStock пополняет складской остаток на qty > 0.
func (c *catalog) AddStock(productID string, qty int32) (int32, error) {
	if productID == "" {
		return 0, domain.ErrProductIDRequired
	}
	if qty <= 0 {
		return 0, domain.ErrStockAdjustmentInvalid
	}

	level, err := c.products.AdjustStock(productID, qty)
	if err != nil {
		return 0, err
	}

	c.logger.WithFields(log.Fields{
		"product_id":  productID,
		"added":       qty,
		"stock_level": level,
	}).Info("stock replenished")

	return level, nil
}

// SetMinimumStockLevel выставляет минимальный порог остатка.
func (c *catalog) SetMinimumStockLevel(productID string, level int32) error {
	if productID == "" {
		return domain.ErrProductIDRequired
	}
	return c.products.SetMinimumStock(productID, level)
}

// LowStockProducts возвращает товары, требующие пополнения.
func (c *catalog) LowStockProducts() ([]domain.Product, error) {
	products, err := c.products.List()
	if err != nil {
		return nil, err
	}

	low := make([]domain.Product, 0)
	for _, product := range products {
		if product.LowStock() {
			low = append(low, product)
		}
	}
	return low, nil
}

var _ Catalog = (*catalog)(nil)
