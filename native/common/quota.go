package common

import (
	"errors"
	"math"
	"sync"
)

var (
	ErrQuotaRequestsExceeded = errors.New("quota requests exceeded")
	ErrQuotaSpendExceeded    = errors.New("quota spend cap exceeded")
	ErrQuotaCounterOverflow  = errors.New("quota counter overflow")
)

// QuotaNow captures the current quota usage counters for an identity.
type QuotaNow struct {
	ReqCount uint32
	Spent    uint64
	EpochID  uint64
}

// Quota defines the limits enforced for mutating registry calls per identity.
// Zero disables the corresponding limit.
type Quota struct {
	MaxRequestsPerEpoch uint32
	MaxSpendPerEpoch    uint64 // token base units moved by subscriptions
	EpochSeconds        uint32
}

// EpochOf maps a unix timestamp onto the quota epoch.
func (q Quota) EpochOf(unix int64) uint64 {
	if unix < 0 {
		return 0
	}
	secs := uint64(q.EpochSeconds)
	if secs == 0 {
		secs = 60
	}
	return uint64(unix) / secs
}

// CheckQuota verifies whether the additional request and spend fit within the
// configured quota. The returned QuotaNow reflects the updated counters when the
// quota is not exceeded.
func CheckQuota(q Quota, nowEpoch uint64, prev QuotaNow, addReq uint32, addSpend uint64) (QuotaNow, error) {
	next := prev
	if prev.EpochID != nowEpoch {
		next = QuotaNow{EpochID: nowEpoch}
	}

	if addReq > 0 {
		if next.ReqCount > math.MaxUint32-addReq {
			return prev, ErrQuotaCounterOverflow
		}
		next.ReqCount += addReq
	}
	if q.MaxRequestsPerEpoch > 0 && next.ReqCount > q.MaxRequestsPerEpoch {
		return prev, ErrQuotaRequestsExceeded
	}

	if addSpend > 0 {
		if next.Spent > math.MaxUint64-addSpend {
			return prev, ErrQuotaCounterOverflow
		}
		next.Spent += addSpend
	}
	if q.MaxSpendPerEpoch > 0 && next.Spent > q.MaxSpendPerEpoch {
		return prev, ErrQuotaSpendExceeded
	}

	return next, nil
}

// Ledger tracks quota usage per identity. It is safe for concurrent use.
type Ledger[K comparable] struct {
	quota Quota
	mu    sync.Mutex
	usage map[K]QuotaNow
}

// NewLedger returns an empty ledger enforcing q.
func NewLedger[K comparable](q Quota) *Ledger[K] {
	return &Ledger[K]{quota: q, usage: make(map[K]QuotaNow)}
}

// Enabled reports whether any limit is configured.
func (l *Ledger[K]) Enabled() bool {
	return l != nil && (l.quota.MaxRequestsPerEpoch > 0 || l.quota.MaxSpendPerEpoch > 0)
}

// Charge books addReq requests and addSpend units for who at nowUnix. Usage
// is left untouched when the charge would exceed the quota.
func (l *Ledger[K]) Charge(who K, nowUnix int64, addReq uint32, addSpend uint64) error {
	if !l.Enabled() {
		return nil
	}
	epoch := l.quota.EpochOf(nowUnix)
	l.mu.Lock()
	defer l.mu.Unlock()
	next, err := CheckQuota(l.quota, epoch, l.usage[who], addReq, addSpend)
	if err != nil {
		return err
	}
	l.usage[who] = next
	l.pruneLocked(epoch)
	return nil
}

// Usage returns the counters for who in the epoch containing nowUnix.
func (l *Ledger[K]) Usage(who K, nowUnix int64) QuotaNow {
	if l == nil {
		return QuotaNow{}
	}
	epoch := l.quota.EpochOf(nowUnix)
	l.mu.Lock()
	defer l.mu.Unlock()
	cur := l.usage[who]
	if cur.EpochID != epoch {
		return QuotaNow{EpochID: epoch}
	}
	return cur
}

// pruneLocked drops identities whose counters belong to earlier epochs once
// the table grows past a threshold.
func (l *Ledger[K]) pruneLocked(epoch uint64) {
	if len(l.usage) < ledgerPruneThreshold {
		return
	}
	for who, cur := range l.usage {
		if cur.EpochID < epoch {
			delete(l.usage, who)
		}
	}
}

const ledgerPruneThreshold = 4096
