package domain

import "time"

// InvoiceStatus описывает состояние счёта.
type InvoiceStatus string

const (
	// InvoiceStatusIssued — счёт выставлен и ожидает оплаты.
	InvoiceStatusIssued InvoiceStatus = "issued"
	// InvoiceStatusPaid — счёт полностью оплачен.
	InvoiceStatusPaid InvoiceStatus = "paid"
)

// InvoiceDueTerm — срок оплаты счёта с момента выставления.
const InvoiceDueTerm = 30 * 24 * time.Hour

// Invoice описывает счёт, выставленный по заказу. На один заказ
// существует не более одного счёта.
type Invoice struct {
	ID         string
	OrderID    string
	MerchantID string
	IssueDate  time.Time
	DueDate    time.Time
	// TotalAmountMinor — сумма счёта, зафиксированная в момент выставления.
	TotalAmountMinor int64
	Status           InvoiceStatus
	CreatedAt        time.Time
}

// ValidateInvariants проверяет корректность полей счёта.
func (i *Invoice) ValidateInvariants() []error {
	var errs []error

	if i.OrderID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if i.MerchantID == "" {
		errs = append(errs, ErrMerchantIDRequired)
	}
	if i.TotalAmountMinor < 0 {
		errs = append(errs, ErrOrderTotalNegative)
	}
	if !i.DueDate.IsZero() && i.DueDate.Before(i.IssueDate) {
		errs = append(errs, ErrInvoiceDueBeforeIssue)
	}

	return errs
}
