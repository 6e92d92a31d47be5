package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
	"github.com/vladislavdragonenkov/infopharma/internal/service/catalog"
	"github.com/vladislavdragonenkov/infopharma/internal/service/directory"
	"github.com/vladislavdragonenkov/infopharma/internal/service/ledger"
)

// Handler обслуживает HTTP-запросы к леджеру, справочнику и каталогу.
type Handler struct {
	ledger    ledger.Ledger
	directory directory.Directory
	catalog   catalog.Catalog
	logger    *log.Entry
	validate  *validator.Validate
}

// NewHandler создаёт HTTP-handler поверх сервисов.
func NewHandler(l ledger.Ledger, d directory.Directory, c catalog.Catalog, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	return &Handler{
		ledger:    l,
		directory: d,
		catalog:   c,
		logger:    logger,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterMerchant обрабатывает POST /merchants.
func (h *Handler) RegisterMerchant(w http.ResponseWriter, r *http.Request) {
	var req registerMerchantRequest
	if !h.decode(w, r, &req) {
		return
	}

	merchant, err := h.directory.RegisterMerchant(directory.RegisterMerchantParams{
		ID:               req.ID,
		Name:             req.Name,
		Address:          req.Address,
		CreditLimitMinor: req.CreditLimitMinor,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toMerchantResponse(merchant))
}

// GetMerchant обрабатывает GET /merchants/{id}.
func (h *Handler) GetMerchant(w http.ResponseWriter, r *http.Request) {
	merchant, err := h.directory.GetMerchant(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMerchantResponse(merchant))
}

// ListMerchants обрабатывает GET /merchants.
func (h *Handler) ListMerchants(w http.ResponseWriter, r *http.Request) {
	merchants, err := h.directory.ListMerchants()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]merchantResponse, len(merchants))
	for i, m := range merchants {
		out[i] = toMerchantResponse(m)
	}
	writeJSON(w, http.StatusOK, out)
}

// UpdateCreditLimit обрабатывает PUT /merchants/{id}/credit-limit.
func (h *Handler) UpdateCreditLimit(w http.ResponseWriter, r *http.Request) {
	var req updateCreditLimitRequest
	if !h.decode(w, r, &req) {
		return
	}

	merchant, err := h.directory.UpdateCreditLimit(chi.URLParam(r, "id"), req.CreditLimitMinor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMerchantResponse(merchant))
}

// ChangeMerchantStatus обрабатывает PUT /merchants/{id}/status.
func (h *Handler) ChangeMerchantStatus(w http.ResponseWriter, r *http.Request) {
	var req changeStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	merchant, err := h.directory.ChangeStatus(chi.URLParam(r, "id"), domain.MerchantStatus(req.Status))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMerchantResponse(merchant))
}

// AddProduct обрабатывает POST /products.
func (h *Handler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req addProductRequest
	if !h.decode(w, r, &req) {
		return
	}

	product, err := h.catalog.AddProduct(catalog.AddProductParams{
		ID:                req.ID,
		Name:              req.Name,
		PriceMinor:        req.PriceMinor,
		StockLevel:        req.StockLevel,
		MinimumStockLevel: req.MinimumStockLevel,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// ListProducts обрабатывает GET /products с опциональным поиском ?q=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.SearchProducts(r.URL.Query().Get("q"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// LowStockProducts обрабатывает GET /products/low-stock.
func (h *Handler) LowStockProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.LowStockProducts()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]productResponse, len(products))
	for i, p := range products {
		out[i] = toProductResponse(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetProduct обрабатывает GET /products/{id}.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.catalog.GetProduct(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// SetStock обрабатывает PUT /products/{id}/stock.
func (h *Handler) SetStock(w http.ResponseWriter, r *http.Request) {
	var req setStockRequest
	if !h.decode(w, r, &req) {
		return
	}

	productID := chi.URLParam(r, "id")
	if err := h.catalog.SetStock(productID, req.StockLevel); err != nil {
		h.writeDomainError(w, err)
		return
	}

	product, err := h.catalog.GetProduct(productID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// AddStock обрабатывает POST /products/{id}/stock.
func (h *Handler) AddStock(w http.ResponseWriter, r *http.Request) {
	var req addStockRequest
	if !h.decode(w, r, &req) {
		return
	}

	level, err := h.catalog.AddStock(chi.URLParam(r, "id"), req.Qty)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, setStockRequest{StockLevel: level})
}

// SetMinimumStock обрабатывает PUT /products/{id}/minimum-stock.
func (h *Handler) SetMinimumStock(w http.ResponseWriter, r *http.Request) {
	var req setMinimumStockRequest
	if !h.decode(w, r, &req) {
		return
	}

	productID := chi.URLParam(r, "id")
	if err := h.catalog.SetMinimumStockLevel(productID, req.MinimumStockLevel); err != nil {
		h.writeDomainError(w, err)
		return
	}

	product, err := h.catalog.GetProduct(productID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// CreateOrder обрабатывает POST /orders.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if !h.decode(w, r, &req) {
		return
	}

	items := make([]domain.OrderItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = domain.OrderItem{
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
		}
	}

	order, err := h.ledger.CreateOrder(domain.Order{
		MerchantID: req.MerchantID,
		Items:      items,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

// GetOrder обрабатывает GET /orders/{id}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.ledger.GetOrder(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// ListMerchantOrders обрабатывает GET /merchants/{id}/orders.
func (h *Handler) ListMerchantOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	orders, err := h.ledger.ListOrdersForMerchant(chi.URLParam(r, "id"), limit)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, out)
}

// CancelOrder обрабатывает POST /orders/{id}/cancel.
func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if _, err := h.ledger.GetOrder(orderID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	if !h.ledger.CancelOrder(orderID) {
		writeError(w, http.StatusConflict, "order_not_cancellable", "only pending orders can be cancelled")
		return
	}

	order, err := h.ledger.GetOrder(orderID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// AdvanceOrderStatus обрабатывает PUT /orders/{id}/status.
func (h *Handler) AdvanceOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req advanceOrderStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	orderID := chi.URLParam(r, "id")
	if _, err := h.ledger.GetOrder(orderID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	if !h.ledger.AdvanceOrderStatus(orderID, domain.OrderStatus(req.Status)) {
		writeError(w, http.StatusConflict, "invalid_status_transition", "order status can only move forward")
		return
	}

	order, err := h.ledger.GetOrder(orderID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// RaiseInvoice обрабатывает POST /orders/{id}/invoice.
func (h *Handler) RaiseInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.ledger.RaiseInvoice(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toInvoiceResponse(invoice))
}

// GetInvoice обрабатывает GET /invoices/{id}.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	invoice, err := h.ledger.GetInvoice(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toInvoiceResponse(invoice))
}

// ListMerchantInvoices обрабатывает GET /merchants/{id}/invoices.
func (h *Handler) ListMerchantInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.ledger.ListInvoicesForMerchant(chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]invoiceResponse, len(invoices))
	for i, inv := range invoices {
		out[i] = toInvoiceResponse(inv)
	}
	writeJSON(w, http.StatusOK, out)
}

// RecordPayment обрабатывает POST /merchants/{id}/payments.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req recordPaymentRequest
	if !h.decode(w, r, &req) {
		return
	}

	merchantID := chi.URLParam(r, "id")
	if _, err := h.directory.GetMerchant(merchantID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	if !h.ledger.RecordPayment(merchantID, req.AmountMinor) {
		writeError(w, http.StatusConflict, "payment_not_recorded", "payment was rejected by the ledger")
		return
	}

	merchant, err := h.directory.GetMerchant(merchantID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMerchantResponse(merchant))
}

// ListMerchantPayments обрабатывает GET /merchants/{id}/payments.
func (h *Handler) ListMerchantPayments(w http.ResponseWriter, r *http.Request) {
	merchantID := chi.URLParam(r, "id")
	if _, err := h.directory.GetMerchant(merchantID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	payments, err := h.ledger.ListPaymentsForMerchant(merchantID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	out := make([]paymentResponse, len(payments))
	for i, p := range payments {
		out[i] = toPaymentResponse(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// OrderTimeline обрабатывает GET /orders/{id}/timeline.
func (h *Handler) OrderTimeline(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if _, err := h.ledger.GetOrder(orderID); err != nil {
		h.writeDomainError(w, err)
		return
	}

	events, err := h.ledger.OrderTimeline(orderID)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimelineResponse(events))
}

// decode разбирает JSON-тело и прогоняет его через validator.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, req any) bool {
	if err := json.NewDecoder(r.Body).Decode(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return false
	}
	return true
}

// writeDomainError переводит доменную ошибку в HTTP-статус.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	status, code := domainErrorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.WithError(err).Error("request failed")
	}
	writeError(w, status, code, err.Error())
}

// domainErrorStatus сопоставляет доменные ошибки с HTTP-статусами.
func domainErrorStatus(err error) (int, string) {
	switch {
	case domain.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrMerchantExists),
		errors.Is(err, domain.ErrProductExists),
		errors.Is(err, domain.ErrOrderExists),
		errors.Is(err, domain.ErrInvoiceExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrStatusTransitionNotAllowed):
		return http.StatusConflict, "transition_not_allowed"
	case domain.IsAccountNotActive(err):
		return http.StatusUnprocessableEntity, "account_not_active"
	case domain.IsCreditLimitExceeded(err):
		return http.StatusUnprocessableEntity, "credit_limit_exceeded"
	case isValidationError(err):
		return http.StatusBadRequest, "invalid_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// isValidationError относит ошибку к семейству нарушений входных инвариантов.
func isValidationError(err error) bool {
	validation := []error{
		domain.ErrMerchantIDRequired,
		domain.ErrMerchantNameRequired,
		domain.ErrMerchantAddressRequired,
		domain.ErrCreditLimitNegative,
		domain.ErrMerchantStatusInvalid,
		domain.ErrProductIDRequired,
		domain.ErrProductNameRequired,
		domain.ErrProductPriceNegative,
		domain.ErrStockNegative,
		domain.ErrMinimumStockNegative,
		domain.ErrStockAdjustmentInvalid,
		domain.ErrItemsRequired,
		domain.ErrItemQtyInvalid,
		domain.ErrItemPriceInvalid,
		domain.ErrItemProductRequired,
		domain.ErrOrderTotalNegative,
		domain.ErrOrderTotalMismatch,
		domain.ErrOrderIDRequired,
		domain.ErrPaymentAmountInvalid,
	}
	for _, target := range validation {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{
		Error:   code,
		Message: msg,
	})
}
