package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/vladislavdragonenkov/infopharma/internal/health"
)

// NewRouter собирает маршруты API. Мутирующие операции заказа и платежи
// проходят через idempotency middleware.
func NewRouter(handler *Handler, idem *IdempotencyMiddleware, healthHandler *health.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	idempotent := func(h http.HandlerFunc) http.HandlerFunc {
		if idem == nil {
			return h
		}
		return idem.Wrap(h).ServeHTTP
	}

	r.Route("/merchants", func(r chi.Router) {
		r.Post("/", handler.RegisterMerchant)
		r.Get("/", handler.ListMerchants)
		r.Get("/{id}", handler.GetMerchant)
		r.Put("/{id}/credit-limit", handler.UpdateCreditLimit)
		r.Put("/{id}/status", handler.ChangeMerchantStatus)
		r.Get("/{id}/orders", handler.ListMerchantOrders)
		r.Get("/{id}/invoices", handler.ListMerchantInvoices)
		r.Post("/{id}/payments", idempotent(handler.RecordPayment))
		r.Get("/{id}/payments", handler.ListMerchantPayments)
	})

	r.Route("/products", func(r chi.Router) {
		r.Post("/", handler.AddProduct)
		r.Get("/", handler.ListProducts)
		r.Get("/low-stock", handler.LowStockProducts)
		r.Get("/{id}", handler.GetProduct)
		r.Put("/{id}/stock", handler.SetStock)
		r.Post("/{id}/stock", handler.AddStock)
		r.Put("/{id}/minimum-stock", handler.SetMinimumStock)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", idempotent(handler.CreateOrder))
		r.Get("/{id}", handler.GetOrder)
		r.Post("/{id}/cancel", idempotent(handler.CancelOrder))
		r.Put("/{id}/status", handler.AdvanceOrderStatus)
		r.Post("/{id}/invoice", idempotent(handler.RaiseInvoice))
		r.Get("/{id}/timeline", handler.OrderTimeline)
	})

	r.Get("/invoices/{id}", handler.GetInvoice)

	if healthHandler != nil {
		r.Get("/health", healthHandler.ServeHTTP)
		r.Get("/healthz", health.LivenessHandler)
		r.Get("/readyz", healthHandler.ReadinessHandler)
	}

	return r
}
