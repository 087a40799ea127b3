package repository_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"rewardsystem/internal/infrastructure/database"
	"rewardsystem/internal/model"
	"rewardsystem/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(filepath.Join(t.TempDir(), "repo.db"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestAccountCreateIfAbsentAndCAS(t *testing.T) {
	db := openDB(t)
	repo := repository.NewAccountRepository(db)
	ctx := context.Background()

	first := &model.Account{UserID: 1, CurrencyBalance: 10, CurrentTier: "starter", LastActivityAt: time.Now().UTC()}
	if err := repo.CreateIfAbsent(ctx, nil, first); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := &model.Account{UserID: 1, CurrencyBalance: 999, CurrentTier: "starter", LastActivityAt: time.Now().UTC()}
	if err := repo.CreateIfAbsent(ctx, nil, dup); err != nil {
		t.Fatalf("duplicate create: %v", err)
	}

	a, _ := repo.GetByUserID(ctx, nil, 1)
	b, _ := repo.GetByUserID(ctx, nil, 1)
	if a.CurrencyBalance != 10 {
		t.Fatalf("balance = %d, duplicate create overwrote row", a.CurrencyBalance)
	}

	a.CurrencyBalance = 20
	if err := repo.UpdateWithVersion(ctx, db, a); err != nil {
		t.Fatalf("update a: %v", err)
	}
	b.CurrencyBalance = 30
	if err := repo.UpdateWithVersion(ctx, db, b); !errors.Is(err, repository.ErrOptimisticLock) {
		t.Fatalf("stale update err = %v, want ErrOptimisticLock", err)
	}

	got, _ := repo.GetByUserID(ctx, nil, 1)
	if got.CurrencyBalance != 20 || got.Version != 1 || a.Version != 1 {
		t.Errorf("row = balance %d version %d, struct version %d", got.CurrencyBalance, got.Version, a.Version)
	}

	if _, err := repo.GetByUserID(ctx, nil, 2); !errors.Is(err, repository.ErrAccountNotFound) {
		t.Errorf("missing account err = %v", err)
	}
}

func TestRedemptionCounter(t *testing.T) {
	db := openDB(t)
	repo := repository.NewRedemptionRepository(db)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := repo.Increment(ctx, db, 1, "bowling-game"); err != nil {
			t.Fatalf("increment: %v", err)
		}
	}
	repo.Increment(ctx, db, 1, "tree-plant")

	n, err := repo.GetCount(ctx, nil, 1, "bowling-game")
	if err != nil || n != 3 {
		t.Fatalf("count = %d, %v", n, err)
	}
	if n, _ := repo.GetCount(ctx, nil, 2, "bowling-game"); n != 0 {
		t.Errorf("other user count = %d", n)
	}

	counts, _ := repo.CountsByUser(ctx, 1)
	if counts["bowling-game"] != 3 || counts["tree-plant"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestStakeTransitions(t *testing.T) {
	db := openDB(t)
	repo := repository.NewStakeRepository(db)
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	stake := &model.Stake{
		StakeNo: "STK1", UserID: 1, PoolID: "hodl", Principal: 500, EffectivePrincipal: 500,
		StakedAt: now, UnlocksAt: now.Add(14 * 24 * time.Hour), LastAccrualAt: now,
		Status: model.StakeStatusActive,
	}
	if err := repo.Create(ctx, db, stake); err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := repo.GetByStakeNoForUpdate(ctx, db, 2, "STK1"); !errors.Is(err, repository.ErrStakeNotFound) {
		t.Errorf("foreign lookup err = %v", err)
	}

	stake.Status = model.StakeStatusUnstaked
	if err := repo.Update(ctx, db, stake, model.StakeStatusActive); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	stake.Status = model.StakeStatusActive
	if err := repo.Update(ctx, db, stake, model.StakeStatusUnstaked); !errors.Is(err, repository.ErrStakeStatusInvalid) {
		t.Errorf("reopen err = %v, want ErrStakeStatusInvalid", err)
	}

	active, _ := repo.ListByUserID(ctx, db, 1, true)
	all, _ := repo.ListByUserID(ctx, db, 1, false)
	if len(active) != 0 || len(all) != 1 {
		t.Errorf("active=%d all=%d", len(active), len(all))
	}
}

func TestRequestRecordDuplicate(t *testing.T) {
	db := openDB(t)
	repo := repository.NewRequestRepository(db)
	ctx := context.Background()

	if err := repo.Create(ctx, nil, &model.RequestRecord{RequestID: "r1", UserID: 1, Action: "credit", Response: "{\"n\":1}"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	err := repo.Create(ctx, nil, &model.RequestRecord{RequestID: "r1", UserID: 2, Action: "stake", Response: "{}"})
	if !errors.Is(err, repository.ErrRequestExists) {
		t.Fatalf("duplicate err = %v, want ErrRequestExists", err)
	}

	got, err := repo.GetByRequestID(ctx, nil, "r1")
	if err != nil || got == nil || got.UserID != 1 || got.Action != "credit" {
		t.Errorf("record = %+v, %v", got, err)
	}
}
