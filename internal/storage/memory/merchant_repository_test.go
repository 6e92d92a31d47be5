package memory_test

import (
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/infopharma/internal/domain"
	"github.com/vladislavdragonenkov/infopharma/internal/storage/memory"
)

func newMerchant() domain.Merchant {
	now := time.Now().UTC()
	return domain.Merchant{
		ID:               "M001",
		Name:             "Central Pharmacy",
		Address:          "12 High Street",
		CreditLimitMinor: 500_000,
		Status:           domain.MerchantStatusActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestMerchantRepository_CreateGet(t *testing.T) {
	repo := memory.NewMerchantRepository()
	merchant := newMerchant()

	if err := repo.Create(merchant); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(merchant.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Name != merchant.Name {
		t.Fatalf("expected name %s, got %s", merchant.Name, stored.Name)
	}
}

func TestMerchantRepository_CreateDuplicate(t *testing.T) {
	repo := memory.NewMerchantRepository()
	merchant := newMerchant()

	if err := repo.Create(merchant); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(merchant); !errors.Is(err, domain.ErrMerchantExists) {
		t.Fatalf("expected ErrMerchantExists, got %v", err)
	}
}

func TestMerchantRepository_GetMissing(t *testing.T) {
	repo := memory.NewMerchantRepository()

	if _, err := repo.Get("absent"); !errors.Is(err, domain.ErrMerchantNotFound) {
		t.Fatalf("expected ErrMerchantNotFound, got %v", err)
	}
}

func TestMerchantRepository_ListSorted(t *testing.T) {
	repo := memory.NewMerchantRepository()

	for _, id := range []string{"M003", "M001", "M002"} {
		merchant := newMerchant()
		merchant.ID = id
		if err := repo.Create(merchant); err != nil {
			t.Fatalf("create %s failed: %v", id, err)
		}
	}

	merchants, err := repo.List()
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(merchants) != 3 {
		t.Fatalf("expected 3 merchants, got %d", len(merchants))
	}
	for i, want := range []string{"M001", "M002", "M003"} {
		if merchants[i].ID != want {
			t.Fatalf("expected %s at position %d, got %s", want, i, merchants[i].ID)
		}
	}
}

func TestMerchantRepository_Save(t *testing.T) {
	repo := memory.NewMerchantRepository()
	merchant := newMerchant()
	if err := repo.Create(merchant); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(merchant.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}

	stored.BalanceMinor = 4_000
	if err := repo.Save(stored); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	updated, err := repo.Get(merchant.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if updated.BalanceMinor != 4_000 {
		t.Fatalf("expected balance 4000, got %d", updated.BalanceMinor)
	}
	if updated.Version != stored.Version+1 {
		t.Fatalf("expected version increment, got %d", updated.Version)
	}
}

func TestMerchantRepository_SaveVersionConflict(t *testing.T) {
	repo := memory.NewMerchantRepository()
	merchant := newMerchant()
	if err := repo.Create(merchant); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	merchant.Version = 42
	if err := repo.Save(merchant); !errors.Is(err, domain.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}
}
