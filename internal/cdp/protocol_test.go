package cdp_test

import (
	"errors"
	"testing"

	"github.com/chinedu-ifeanyi/stable-btc/internal/cdp"

	"github.com/google/uuid"
)

var testOwner = uuid.MustParse("00000000-0000-0000-0000-000000000001")

func TestCurrentPrice(t *testing.T) {
	const now = int64(1_700_000_000)
	const window = int64(86_400)

	t.Run("no price data", func(t *testing.T) {
		ps := cdp.NewProtocolState(testOwner, 0)
		if _, err := ps.CurrentPrice(now, window); !errors.Is(err, cdp.ErrNoPriceData) {
			t.Errorf("err = %v, want ErrNoPriceData", err)
		}
	})

	t.Run("fresh price", func(t *testing.T) {
		ps := cdp.NewProtocolState(testOwner, 0)
		ps.Price = &cdp.PriceRecord{Price: 40_000, ObservedAt: now - window + 1}
		price, err := ps.CurrentPrice(now, window)
		if err != nil || price != 40_000 {
			t.Errorf("CurrentPrice = (%d, %v), want (40000, nil)", price, err)
		}
	})

	t.Run("exactly at window is stale", func(t *testing.T) {
		ps := cdp.NewProtocolState(testOwner, 0)
		ps.Price = &cdp.PriceRecord{Price: 40_000, ObservedAt: now - window}
		if _, err := ps.CurrentPrice(now, window); !errors.Is(err, cdp.ErrPriceStale) {
			t.Errorf("err = %v, want ErrPriceStale", err)
		}
	})

	t.Run("non-positive price is stale", func(t *testing.T) {
		ps := cdp.NewProtocolState(testOwner, 0)
		ps.Price = &cdp.PriceRecord{Price: 0, ObservedAt: now}
		if _, err := ps.CurrentPrice(now, window); !errors.Is(err, cdp.ErrPriceStale) {
			t.Errorf("err = %v, want ErrPriceStale", err)
		}
	})
}

func TestGlobalAccrualIdempotentPerHeight(t *testing.T) {
	params := cdp.DefaultParams()
	ps := cdp.NewProtocolState(testOwner, 100)
	ps.TotalDebt = 1_000_000

	acc := ps.StageGlobalAccrual(1_100, params)
	if acc.Interest != 1_000 || acc.BlocksPassed != 1_000 {
		t.Fatalf("staged = %+v, want {1000, 1000}", acc)
	}

	// Staging mutates nothing.
	if ps.TotalDebt != 1_000_000 || ps.LastAccrualHeight != 100 {
		t.Fatal("StageGlobalAccrual mutated state")
	}

	ps.CommitGlobalAccrual(1_100, acc)
	if ps.TotalDebt != 1_001_000 || ps.StabilityFeeAccumulator != 1_000 {
		t.Errorf("after commit: debt=%d, fees=%d, want 1001000/1000",
			ps.TotalDebt, ps.StabilityFeeAccumulator)
	}
	if ps.LastAccrualHeight != 1_100 {
		t.Errorf("LastAccrualHeight = %d, want 1100", ps.LastAccrualHeight)
	}

	// Re-staging the same height is a no-op, so a replay cannot
	// double-apply interest.
	again := ps.StageGlobalAccrual(1_100, params)
	if again.BlocksPassed != 0 || again.Interest != 0 {
		t.Errorf("re-staged same height = %+v, want no-op", again)
	}
	ps.CommitGlobalAccrual(1_100, again)
	if ps.TotalDebt != 1_001_000 {
		t.Errorf("replayed commit changed debt: %d", ps.TotalDebt)
	}

	// A height behind the cursor is likewise ignored.
	if back := ps.StageGlobalAccrual(500, params); back.BlocksPassed != 0 {
		t.Errorf("backwards height staged %+v, want no-op", back)
	}
}

func TestPositionBookAccrueSnapshot(t *testing.T) {
	params := cdp.DefaultParams()
	account := uuid.MustParse("00000000-0000-0000-0000-00000000000a")

	t.Run("absent position yields transient zero snapshot", func(t *testing.T) {
		book := cdp.NewPositionBook()
		snap := book.AccrueSnapshot(account, 500, params)
		if snap.Exists {
			t.Error("absent position reported Exists=true")
		}
		if snap.Collateral != 0 || snap.Debt != 0 || snap.LastUpdateHeight != 500 {
			t.Errorf("snapshot = %+v", snap)
		}
		if book.Get(account) != nil {
			t.Error("AccrueSnapshot persisted an absent position")
		}
	})

	t.Run("interest caught up to height", func(t *testing.T) {
		book := cdp.NewPositionBook()
		book.Set(&cdp.Position{
			Account:          account,
			Collateral:       1_000_000,
			Debt:             1_000_000,
			LastUpdateHeight: 100,
		})

		snap := book.AccrueSnapshot(account, 1_100, params)
		if snap.Debt != 1_001_000 {
			t.Errorf("accrued debt = %d, want 1001000", snap.Debt)
		}
		if snap.LastUpdateHeight != 1_100 {
			t.Errorf("LastUpdateHeight = %d, want 1100", snap.LastUpdateHeight)
		}

		// Snapshot is staged only; the book is untouched until Commit.
		if got := book.Get(account).Debt; got != 1_000_000 {
			t.Errorf("book debt mutated before commit: %d", got)
		}

		book.Commit(snap)
		pos := book.Get(account)
		if pos.Debt != 1_001_000 || pos.LastUpdateHeight != 1_100 {
			t.Errorf("committed position = %+v", pos)
		}
		if pos.Version != 1 {
			t.Errorf("Version = %d, want 1", pos.Version)
		}
	})

	t.Run("height behind cursor does not re-accrue", func(t *testing.T) {
		book := cdp.NewPositionBook()
		book.Set(&cdp.Position{
			Account:          account,
			Collateral:       1_000_000,
			Debt:             1_000_000,
			LastUpdateHeight: 1_100,
		})

		snap := book.AccrueSnapshot(account, 500, params)
		if snap.Debt != 1_000_000 || snap.LastUpdateHeight != 1_100 {
			t.Errorf("backwards snapshot = %+v, want unchanged", snap)
		}
	})

	t.Run("zero debt commit deletes", func(t *testing.T) {
		book := cdp.NewPositionBook()
		book.Set(&cdp.Position{Account: account, Collateral: 100, Debt: 100, LastUpdateHeight: 0})

		snap := book.AccrueSnapshot(account, 0, params)
		snap.Debt = 0
		snap.Collateral = 0
		book.Commit(snap)

		if book.Get(account) != nil {
			t.Error("zero-debt commit kept the position")
		}
		if book.Len() != 0 {
			t.Errorf("Len = %d, want 0", book.Len())
		}
	})
}

func TestParamsValidate(t *testing.T) {
	valid := cdp.DefaultParams()
	if err := valid.Validate(); err != nil {
		t.Fatalf("default params invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*cdp.Params)
	}{
		{"zero minimum loan", func(p *cdp.Params) { p.MinimumLoan = 0 }},
		{"negative rate", func(p *cdp.Params) { p.StabilityRatePerBlock = -1 }},
		{"zero rate denominator", func(p *cdp.Params) { p.StabilityRateDenominator = 0 }},
		{"rate at or above denominator", func(p *cdp.Params) {
			p.StabilityRatePerBlock = p.StabilityRateDenominator
		}},
		{"zero freshness window", func(p *cdp.Params) { p.PriceFreshnessWindow = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := cdp.DefaultParams()
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
