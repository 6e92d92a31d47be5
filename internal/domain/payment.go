package domain

import "time"

// Payment описывает входящий платёж мерчанта. Платёж неизменяем:
// история платежей append-only и никогда не редактируется.
type Payment struct {
	ID         string
	MerchantID string
	// AmountMinor — сумма платежа в минимальных денежных единицах, строго положительная.
	AmountMinor int64
	Date        time.Time
}

// Validate проверяет корректность полей платежа и возвращает ошибки, если они есть.
func (p *Payment) Validate() []error {
	var errs []error

	if p.MerchantID == "" {
		errs = append(errs, ErrMerchantIDRequired)
	}
	if p.AmountMinor <= 0 {
		errs = append(errs, ErrPaymentAmountInvalid)
	}

	return errs
}
