package handshake

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/darkpool-labs/relayer/rerrors"
	"github.com/darkpool-labs/relayer/wallet"
)

// PairKey identifies a tradable pair by its two mint identifiers, order
// independent -- two orders quoting the same two mints in either direction
// share one price cache entry.
type PairKey [2]wallet.MintID

func NewPairKey(a, b wallet.MintID) PairKey {
	if string(a[:]) > string(b[:]) {
		a, b = b, a
	}
	return PairKey{a, b}
}

// Report is a single exchange's view of a pair's midpoint price at a point
// in time.
type Report struct {
	Exchange  string
	Midpoint  float64
	Timestamp time.Time
}

// PriceReporter is the external collaborator the handshake package consults
// for price agreement, kept opaque per Non-goals -- the relayer does not
// implement exchange connectivity itself.
type PriceReporter interface {
	Midpoint(pair PairKey) (Report, error)
}

// ringCache is a fixed-depth, single-writer/multi-reader ring buffer of the
// most recent reports from one exchange connection for one pair, grounded
// on the original price reporter's per-exchange ring channel: each exchange
// connection owns one cache, never contended for writes.
type ringCache struct {
	mu     sync.RWMutex
	buf    []Report
	next   int
	filled bool
}

func newRingCache(depth int) *ringCache {
	return &ringCache{buf: make([]Report, depth)}
}

// Push records a new report, overwriting the oldest entry once full.
func (r *ringCache) Push(rep Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf[r.next] = rep
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.filled = true
	}
}

// Latest returns the most recently pushed report, if any.
func (r *ringCache) Latest() (Report, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.filled && r.next == 0 {
		return Report{}, false
	}
	idx := r.next - 1
	if idx < 0 {
		idx = len(r.buf) - 1
	}
	return r.buf[idx], true
}

// medianReport fetches the midpoint from each reporter, discards anything
// older than PriceStalenessWindow, and returns the median of what remains.
// Returns an error if every reporter is stale or none returned a usable
// report.
func medianReport(pair PairKey, reporters []PriceReporter, now time.Time) (float64, error) {
	var fresh []float64
	for _, r := range reporters {
		rep, err := r.Midpoint(pair)
		if err != nil {
			continue
		}
		if now.Sub(rep.Timestamp) > PriceStalenessWindow {
			continue
		}
		fresh = append(fresh, rep.Midpoint)
	}
	if len(fresh) == 0 {
		return 0, rerrors.MPC(fmt.Errorf("no fresh price report for pair within staleness window"))
	}
	sort.Float64s(fresh)
	mid := len(fresh) / 2
	if len(fresh)%2 == 1 {
		return fresh[mid], nil
	}
	return (fresh[mid-1] + fresh[mid]) / 2, nil
}

// agreePrice computes the local median quote and checks the counterparty's
// proposed price does not deviate from it by more than PriceToleranceBps.
func agreePrice(pair PairKey, reporters []PriceReporter, counterpartyPrice float64, now time.Time) (float64, error) {
	local, err := medianReport(pair, reporters, now)
	if err != nil {
		return 0, err
	}
	if local == 0 {
		return 0, rerrors.MPC(fmt.Errorf("local median price for pair is zero"))
	}

	deviationBps := (counterpartyPrice - local) / local * 10000
	if deviationBps < 0 {
		deviationBps = -deviationBps
	}
	if deviationBps > PriceToleranceBps {
		return 0, rerrors.MPC(fmt.Errorf(
			"counterparty price %.6f deviates %.1fbps from local median %.6f, exceeding tolerance",
			counterpartyPrice, deviationBps, local))
	}
	return local, nil
}
