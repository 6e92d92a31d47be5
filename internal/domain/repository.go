package domain

// MerchantRepository описывает требования к справочнику аккаунтов.
// Семантику balance/status справочник не интерпретирует: это зона
// ответственности леджера.
type MerchantRepository interface {
	// Create сохраняет нового мерчанта. Возвращает ErrMerchantExists при дубликате.
	Create(m Merchant) error
	// Get возвращает мерчанта по идентификатору или ErrMerchantNotFound.
	Get(id string) (Merchant, error)
	// List возвращает всех зарегистрированных мерчантов.
	List() ([]Merchant, error)
	// Save применяет обновления с учётом optimistic locking по Version.
	Save(m Merchant) error
}

// ProductRepository описывает требования к каталогу товаров.
type ProductRepository interface {
	// Create сохраняет новый товар. Возвращает ErrProductExists при дубликате.
	Create(p Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(id string) (Product, error)
	// List возвращает все товары каталога.
	List() ([]Product, error)
	// SetStock выставляет абсолютный складской остаток (>= 0).
	SetStock(id string, level int32) error
	// AdjustStock атомарно меняет остаток на delta, не опускаясь ниже нуля.
	// Возвращает новый остаток.
	AdjustStock(id string, delta int32) (int32, error)
	// SetMinimumStock выставляет минимальный порог остатка.
	SetMinimumStock(id string, level int32) error
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ. Возвращает ErrOrderExists при коллизии ID.
	Create(order Order) error
	// Get возвращает заказ по идентификатору или ErrOrderNotFound.
	Get(id string) (Order, error)
	// ListByMerchant возвращает заказы мерчанта с опциональным лимитом.
	ListByMerchant(merchantID string, limit int) ([]Order, error)
	// Save применяет обновления к заказу с учётом optimistic locking.
	Save(order Order) error
}

// InvoiceRepository описывает требования к хранилищу счетов.
// Хранилище обязано обеспечивать уникальность счёта на заказ.
type InvoiceRepository interface {
	// Create сохраняет счёт; ErrInvoiceExists, если по заказу счёт уже выставлен.
	Create(inv Invoice) error
	// Get возвращает счёт по идентификатору или ErrInvoiceNotFound.
	Get(id string) (Invoice, error)
	// GetByOrder возвращает счёт по заказу или ErrInvoiceNotFound.
	GetByOrder(orderID string) (Invoice, error)
	// ListByMerchant возвращает счета мерчанта.
	ListByMerchant(merchantID string) ([]Invoice, error)
}

// PaymentRepository хранит append-only историю платежей мерчантов.
type PaymentRepository interface {
	// Append добавляет платёж в историю. Записи не изменяются и не удаляются.
	Append(p Payment) error
	// ListByMerchant возвращает платежи мерчанта в порядке добавления.
	ListByMerchant(merchantID string) ([]Payment, error)
}
