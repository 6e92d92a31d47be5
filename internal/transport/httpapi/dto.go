package httpapi

import (
	"time"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
)

// Все денежные значения в API передаются в минимальных единицах валюты.

type registerMerchantRequest struct {
	ID               string `json:"id" validate:"required"`
	Name             string `json:"name" validate:"required"`
	Address          string `json:"address" validate:"required"`
	CreditLimitMinor *int64 `json:"credit_limit_minor" validate:"omitempty,gte=0"`
}

type updateCreditLimitRequest struct {
	CreditLimitMinor int64 `json:"credit_limit_minor" validate:"gte=0"`
}

type changeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=active suspended in_default"`
}

type merchantResponse struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	Address              string    `json:"address"`
	CreditLimitMinor     int64     `json:"credit_limit_minor"`
	BalanceMinor         int64     `json:"balance_minor"`
	AvailableCreditMinor int64     `json:"available_credit_minor"`
	Status               string    `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func toMerchantResponse(m domain.Merchant) merchantResponse {
	return merchantResponse{
		ID:                   m.ID,
		Name:                 m.Name,
		Address:              m.Address,
		CreditLimitMinor:     m.CreditLimitMinor,
		BalanceMinor:         m.BalanceMinor,
		AvailableCreditMinor: m.AvailableCreditMinor(),
		Status:               string(m.Status),
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

type addProductRequest struct {
	ID                string `json:"id" validate:"required"`
	Name              string `json:"name" validate:"required"`
	PriceMinor        int64  `json:"price_minor" validate:"gte=0"`
	StockLevel        int32  `json:"stock_level" validate:"gte=0"`
	MinimumStockLevel *int32 `json:"minimum_stock_level" validate:"omitempty,gte=0"`
}

type setStockRequest struct {
	StockLevel int32 `json:"stock_level" validate:"gte=0"`
}

type addStockRequest struct {
	Qty int32 `json:"qty" validate:"gt=0"`
}

type setMinimumStockRequest struct {
	MinimumStockLevel int32 `json:"minimum_stock_level" validate:"gte=0"`
}

type productResponse struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	PriceMinor        int64     `json:"price_minor"`
	StockLevel        int32     `json:"stock_level"`
	MinimumStockLevel int32     `json:"minimum_stock_level"`
	LowStock          bool      `json:"low_stock"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:                p.ID,
		Name:              p.Name,
		PriceMinor:        p.PriceMinor,
		StockLevel:        p.StockLevel,
		MinimumStockLevel: p.MinimumStockLevel,
		LowStock:          p.LowStock(),
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

type orderItemRequest struct {
	ProductID      string `json:"product_id" validate:"required"`
	Qty            int32  `json:"qty" validate:"gt=0"`
	UnitPriceMinor int64  `json:"unit_price_minor" validate:"gte=0"`
}

type createOrderRequest struct {
	MerchantID string             `json:"merchant_id" validate:"required"`
	Items      []orderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type advanceOrderStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=dispatched delivered"`
}

type orderItemResponse struct {
	ProductID      string `json:"product_id"`
	Qty            int32  `json:"qty"`
	UnitPriceMinor int64  `json:"unit_price_minor"`
}

type orderResponse struct {
	ID         string              `json:"id"`
	MerchantID string              `json:"merchant_id"`
	Status     string              `json:"status"`
	TotalMinor int64               `json:"total_minor"`
	Items      []orderItemResponse `json:"items"`
	OrderDate  time.Time           `json:"order_date"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ProductID:      item.ProductID,
			Qty:            item.Qty,
			UnitPriceMinor: item.UnitPriceMinor,
		}
	}
	return orderResponse{
		ID:         o.ID,
		MerchantID: o.MerchantID,
		Status:     string(o.Status),
		TotalMinor: o.TotalMinor,
		Items:      items,
		OrderDate:  o.OrderDate,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

type invoiceResponse struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"order_id"`
	MerchantID       string    `json:"merchant_id"`
	IssueDate        time.Time `json:"issue_date"`
	DueDate          time.Time `json:"due_date"`
	TotalAmountMinor int64     `json:"total_amount_minor"`
	Status           string    `json:"status"`
}

func toInvoiceResponse(inv domain.Invoice) invoiceResponse {
	return invoiceResponse{
		ID:               inv.ID,
		OrderID:          inv.OrderID,
		MerchantID:       inv.MerchantID,
		IssueDate:        inv.IssueDate,
		DueDate:          inv.DueDate,
		TotalAmountMinor: inv.TotalAmountMinor,
		Status:           string(inv.Status),
	}
}

type recordPaymentRequest struct {
	AmountMinor int64 `json:"amount_minor" validate:"gt=0"`
}

type paymentResponse struct {
	ID          string    `json:"id"`
	MerchantID  string    `json:"merchant_id"`
	AmountMinor int64     `json:"amount_minor"`
	Date        time.Time `json:"date"`
}

func toPaymentResponse(p domain.Payment) paymentResponse {
	return paymentResponse{
		ID:          p.ID,
		MerchantID:  p.MerchantID,
		AmountMinor: p.AmountMinor,
		Date:        p.Date,
	}
}

type timelineEventResponse struct {
	OrderID  string    `json:"order_id"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}

func toTimelineResponse(events []domain.TimelineEvent) []timelineEventResponse {
	out := make([]timelineEventResponse, len(events))
	for i, event := range events {
		out[i] = timelineEventResponse{
			OrderID:  event.OrderID,
			Type:     event.Type,
			Reason:   event.Reason,
			Occurred: event.Occurred,
		}
	}
	return out
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
