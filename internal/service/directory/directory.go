package directory

import (
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
	"github.com/vladislavdragonenkov/infopharma/internal/keylock"
)

// DefaultCreditLimitMinor — кредитный лимит по умолчанию (5000.00 в
// минимальных денежных единицах).
const DefaultCreditLimitMinor int64 = 500_000

// RegisterMerchantParams описывает заявку на регистрацию мерчанта.
// Нулевой CreditLimitMinor означает лимит по умолчанию.
type RegisterMerchantParams struct {
	ID               string
	Name             string
	Address          string
	CreditLimitMinor *int64
}

// Directory описывает интерфейс справочника кредитных аккаунтов.
type Directory interface {
	// RegisterMerchant заводит новый аккаунт со статусом active.
	RegisterMerchant(params RegisterMerchantParams) (domain.Merchant, error)
	// UpdateCreditLimit выставляет новый кредитный лимит аккаунта.
	UpdateCreditLimit(merchantID string, limitMinor int64) (domain.Merchant, error)
	// ChangeStatus выполняет административную смену статуса аккаунта.
	ChangeStatus(merchantID string, next domain.MerchantStatus) (domain.Merchant, error)
	// GetMerchant возвращает аккаунт по идентификатору.
	GetMerchant(merchantID string) (domain.Merchant, error)
	// ListMerchants возвращает все аккаунты.
	ListMerchants() ([]domain.Merchant, error)
	// BalanceMinor возвращает текущий долг мерчанта.
	BalanceMinor(merchantID string) (int64, error)
}

// directory реализует справочник поверх MerchantRepository. Мутации
// аккаунта идут под тем же ключевым мьютексом, что и операции леджера,
// поэтому не конфликтуют с проведением заказов.
type directory struct {
	merchants domain.MerchantRepository
	accounts  *keylock.KeyedMutex
	logger    *log.Entry
}

// New создаёт справочник аккаунтов.
func New(merchants domain.MerchantRepository, accounts *keylock.KeyedMutex, logger *log.Entry) Directory {
	if logger == nil {
		logger = log.New().WithField("component", "directory")
	}
	if accounts == nil {
		accounts = keylock.New()
	}
	return &directory{
		merchants: merchants,
		accounts:  accounts,
		logger:    logger,
	}
}

// RegisterMerchant заводит аккаунт: статус active, нулевой долг,
// лимит из заявки либо DefaultCreditLimitMinor.
func (d *directory) RegisterMerchant(params RegisterMerchantParams) (domain.Merchant, error) {
	now := time.Now().UTC()
	merchant := domain.Merchant{
		ID:               strings.TrimSpace(params.ID),
		Name:             strings.TrimSpace(params.Name),
		Address:          strings.TrimSpace(params.Address),
		CreditLimitMinor: DefaultCreditLimitMinor,
		Status:           domain.MerchantStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if params.CreditLimitMinor != nil {
		merchant.CreditLimitMinor = *params.CreditLimitMinor
	}

	if errs := merchant.ValidateInvariants(); len(errs) > 0 {
		return domain.Merchant{}, errs[0]
	}

	if err := d.merchants.Create(merchant); err != nil {
		d.logger.WithError(err).WithField("merchant_id", merchant.ID).Warn("merchant registration failed")
		return domain.Merchant{}, err
	}

	d.logger.WithFields(log.Fields{
		"merchant_id":        merchant.ID,
		"credit_limit_minor": merchant.CreditLimitMinor,
	}).Info("merchant registered")

	return merchant, nil
}

// UpdateCreditLimit выставляет новый лимит. Текущий долг не проверяется:
// лимит ниже долга просто блокирует новые заказы.
func (d *directory) UpdateCreditLimit(merchantID string, limitMinor int64) (domain.Merchant, error) {
	if merchantID == "" {
		return domain.Merchant{}, domain.ErrMerchantIDRequired
	}
	if limitMinor < 0 {
		return domain.Merchant{}, domain.ErrCreditLimitNegative
	}

	unlock := d.accounts.Lock(merchantID)
	defer unlock()

	merchant, err := d.merchants.Get(merchantID)
	if err != nil {
		return domain.Merchant{}, err
	}

	merchant.CreditLimitMinor = limitMinor
	merchant.UpdatedAt = time.Now().UTC()
	if err := d.merchants.Save(merchant); err != nil {
		d.logger.WithError(err).WithField("merchant_id", merchantID).Error("failed to persist credit limit")
		return domain.Merchant{}, err
	}
	merchant.Version++

	d.logger.WithFields(log.Fields{
		"merchant_id":        merchantID,
		"credit_limit_minor": limitMinor,
	}).Info("credit limit updated")

	return merchant, nil
}

// ChangeStatus выполняет административный переход статуса.
// Из in_default разрешены только active и suspended.
func (d *directory) ChangeStatus(merchantID string, next domain.MerchantStatus) (domain.Merchant, error) {
	if merchantID == "" {
		return domain.Merchant{}, domain.ErrMerchantIDRequired
	}
	if !next.Valid() {
		return domain.Merchant{}, domain.ErrMerchantStatusInvalid
	}

	unlock := d.accounts.Lock(merchantID)
	defer unlock()

	merchant, err := d.merchants.Get(merchantID)
	if err != nil {
		return domain.Merchant{}, err
	}

	if !merchant.CanTransitionTo(next) {
		d.logger.WithFields(log.Fields{
			"merchant_id": merchantID,
			"from":        merchant.Status,
			"to":          next,
		}).Warn("status transition rejected")
		return domain.Merchant{}, domain.ErrStatusTransitionNotAllowed
	}

	previous := merchant.Status
	merchant.Status = next
	merchant.UpdatedAt = time.Now().UTC()
	if err := d.merchants.Save(merchant); err != nil {
		d.logger.WithError(err).WithField("merchant_id", merchantID).Error("failed to persist status change")
		return domain.Merchant{}, err
	}
	merchant.Version++

	d.logger.WithFields(log.Fields{
		"merchant_id": merchantID,
		"from":        previous,
		"to":          next,
	}).Info("merchant status changed")

	return merchant, nil
}

// GetMerchant возвращает аккаунт по идентификатору.
func (d *directory) GetMerchant(merchantID string) (domain.Merchant, error) {
	if merchantID == "" {
		return domain.Merchant{}, domain.ErrMerchantIDRequired
	}
	return d.merchants.Get(merchantID)
}

// ListMerchants возвращает все аккаунты справочника.
func (d *directory) ListMerchants() ([]domain.Merchant, error) {
	return d.merchants.List()
}

// BalanceMinor возвращает текущий долг мерчанта.
func (d *directory) BalanceMinor(merchantID string) (int64, error) {
	merchant, err := d.GetMerchant(merchantID)
	if err != nil {
		return 0, err
	}
	return merchant.BalanceMinor, nil
}

var _ Directory = (*directory)(nil)
