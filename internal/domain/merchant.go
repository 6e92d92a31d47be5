package domain

import "time"

// MerchantStatus описывает состояние кредитного аккаунта мерчанта.
type MerchantStatus string

const (
	// MerchantStatusActive — аккаунт активен, заказы принимаются.
	MerchantStatusActive MerchantStatus = "active"
	// MerchantStatusSuspended — аккаунт приостановлен администратором.
	MerchantStatusSuspended MerchantStatus = "suspended"
	// MerchantStatusInDefault — мерчант допустил дефолт по задолженности.
	MerchantStatusInDefault MerchantStatus = "in_default"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s MerchantStatus) Valid() bool {
	switch s {
	case MerchantStatusActive, MerchantStatusSuspended, MerchantStatusInDefault:
		return true
	default:
		return false
	}
}

// Merchant агрегирует кредитный профиль покупателя-дистрибьютора.
type Merchant struct {
	ID      string
	Name    string
	Address string
	// CreditLimitMinor — максимально допустимый долг в минимальных денежных единицах.
	CreditLimitMinor int64
	// BalanceMinor — текущий долг; отрицательное значение означает переплату в пользу мерчанта.
	BalanceMinor int64
	Status       MerchantStatus
	Version      int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ValidateInvariants проверяет базовые инварианты мерчанта и возвращает список замечаний.
func (m *Merchant) ValidateInvariants() []error {
	var errs []error

	if m.ID == "" {
		errs = append(errs, ErrMerchantIDRequired)
	}
	if m.Name == "" {
		errs = append(errs, ErrMerchantNameRequired)
	}
	if m.Address == "" {
		errs = append(errs, ErrMerchantAddressRequired)
	}
	if m.CreditLimitMinor < 0 {
		errs = append(errs, ErrCreditLimitNegative)
	}
	if !m.Status.Valid() {
		errs = append(errs, ErrMerchantStatusInvalid)
	}

	return errs
}

// AvailableCreditMinor возвращает остаток кредитной линии.
func (m *Merchant) AvailableCreditMinor() int64 {
	return m.CreditLimitMinor - m.BalanceMinor
}

// RecalcStatusAfterPayment пересчитывает статус после применения платежа.
// Полное погашение долга всегда реактивирует аккаунт; частичное погашение
// не снимает suspended/in_default — эти состояния снимаются только вручную.
func (m *Merchant) RecalcStatusAfterPayment() {
	switch {
	case m.BalanceMinor <= 0:
		m.Status = MerchantStatusActive
	case m.BalanceMinor <= m.CreditLimitMinor:
		if m.Status != MerchantStatusSuspended && m.Status != MerchantStatusInDefault {
			m.Status = MerchantStatusActive
		}
	}
	// Долг выше кредитного лимита статус не меняет: решение за администратором.
}

// CanTransitionTo проверяет допустимость административной смены статуса.
// Из in_default разрешены только переходы в active или suspended.
func (m *Merchant) CanTransitionTo(next MerchantStatus) bool {
	if !next.Valid() {
		return false
	}
	if m.Status == MerchantStatusInDefault &&
		next != MerchantStatusActive && next != MerchantStatusSuspended {
		return false
	}
	return true
}
