package common

import (
	"errors"
	"testing"
)

func TestCheckQuotaRequestLimit(t *testing.T) {
	q := Quota{MaxRequestsPerEpoch: 10}
	prev := QuotaNow{EpochID: 1}

	next, err := CheckQuota(q, 1, prev, 10, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ReqCount != 10 {
		t.Fatalf("unexpected request count: %d", next.ReqCount)
	}

	denied, err := CheckQuota(q, 1, next, 1, 0)
	if !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected ErrQuotaRequestsExceeded, got %v", err)
	}
	if denied != next {
		t.Fatalf("expected counters to remain unchanged on denial")
	}

	rollover, err := CheckQuota(q, 2, next, 1, 0)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.EpochID != 2 || rollover.ReqCount != 1 {
		t.Fatalf("unexpected state after rollover: %+v", rollover)
	}
}

func TestCheckQuotaSpend(t *testing.T) {
	q := Quota{MaxSpendPerEpoch: 1000}
	prev := QuotaNow{EpochID: 5}

	next, err := CheckQuota(q, 5, prev, 0, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Spent != 1000 {
		t.Fatalf("unexpected spend: %d", next.Spent)
	}

	if _, err := CheckQuota(q, 5, next, 0, 1); !errors.Is(err, ErrQuotaSpendExceeded) {
		t.Fatalf("expected ErrQuotaSpendExceeded, got %v", err)
	}

	rollover, err := CheckQuota(q, 6, next, 0, 500)
	if err != nil {
		t.Fatalf("unexpected error after epoch rollover: %v", err)
	}
	if rollover.Spent != 500 {
		t.Fatalf("unexpected spend after rollover: %d", rollover.Spent)
	}
}

func TestQuotaEpochOf(t *testing.T) {
	q := Quota{EpochSeconds: 3600}
	if got := q.EpochOf(7200); got != 2 {
		t.Fatalf("unexpected epoch: %d", got)
	}
	if got := (Quota{}).EpochOf(125); got != 2 {
		t.Fatalf("default epoch should be one minute, got %d", got)
	}
}

func TestGuard(t *testing.T) {
	pauses := NewSwitch("registry")
	if !errors.Is(Guard(pauses, "registry"), ErrModulePaused) {
		t.Fatalf("expected paused registry")
	}
	if err := Guard(pauses, "bank"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Guard(nil, "registry"); err != nil {
		t.Fatalf("nil view must not pause: %v", err)
	}
}

func TestSwitchToggles(t *testing.T) {
	s := NewSwitch("registry", "")
	if got := s.Paused(); len(got) != 1 || got[0] != "registry" {
		t.Fatalf("unexpected paused set: %v", got)
	}
	s.SetPaused("bank", true)
	s.SetPaused("registry", false)
	if s.IsPaused("registry") || !s.IsPaused("bank") {
		t.Fatalf("toggle not applied: %v", s.Paused())
	}
	var nilSwitch *Switch
	if err := Guard(nilSwitch, "registry"); err != nil {
		t.Fatalf("nil switch must not pause: %v", err)
	}
}

func TestLedgerChargesPerIdentity(t *testing.T) {
	l := NewLedger[string](Quota{MaxRequestsPerEpoch: 2, MaxSpendPerEpoch: 100, EpochSeconds: 60})
	if !l.Enabled() {
		t.Fatalf("ledger with limits must be enabled")
	}
	for i := 0; i < 2; i++ {
		if err := l.Charge("alice", 10, 1, 0); err != nil {
			t.Fatalf("charge %d: %v", i, err)
		}
	}
	if err := l.Charge("alice", 10, 1, 0); !errors.Is(err, ErrQuotaRequestsExceeded) {
		t.Fatalf("expected request limit, got %v", err)
	}
	if err := l.Charge("bob", 10, 1, 150); !errors.Is(err, ErrQuotaSpendExceeded) {
		t.Fatalf("expected spend limit, got %v", err)
	}
	if got := l.Usage("bob", 10); got.ReqCount != 0 || got.Spent != 0 {
		t.Fatalf("denied charge must not book usage: %+v", got)
	}
	if err := l.Charge("alice", 70, 1, 0); err != nil {
		t.Fatalf("next epoch should reset counters: %v", err)
	}
	if got := l.Usage("alice", 70); got.ReqCount != 1 || got.EpochID != 1 {
		t.Fatalf("unexpected usage: %+v", got)
	}
	if err := NewLedger[string](Quota{}).Charge("x", 0, 1000, 1000); err != nil {
		t.Fatalf("disabled ledger must accept: %v", err)
	}
}
