package handshake

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/darkpool-labs/relayer/rerrors"
	"github.com/darkpool-labs/relayer/wallet"
)

func TestNewPairKeyIsOrderIndependent(t *testing.T) {
	var a, b wallet.MintID
	a[0] = 1
	b[0] = 2

	require.Equal(t, NewPairKey(a, b), NewPairKey(b, a))
}

func TestRingCacheLatestEmpty(t *testing.T) {
	c := newRingCache(3)
	_, ok := c.Latest()
	require.False(t, ok)
}

func TestRingCacheLatestReturnsMostRecentPush(t *testing.T) {
	c := newRingCache(2)
	now := time.Now()
	c.Push(Report{Exchange: "a", Midpoint: 1, Timestamp: now})
	c.Push(Report{Exchange: "b", Midpoint: 2, Timestamp: now})
	c.Push(Report{Exchange: "c", Midpoint: 3, Timestamp: now})

	latest, ok := c.Latest()
	require.True(t, ok)
	require.Equal(t, "c", latest.Exchange)
}

type fakeReporter struct {
	report Report
	err    error
}

func (f fakeReporter) Midpoint(pair PairKey) (Report, error) { return f.report, f.err }

func TestMedianReportOfThreeReporters(t *testing.T) {
	now := time.Now()
	pair := PairKey{}
	reporters := []PriceReporter{
		fakeReporter{report: Report{Midpoint: 100, Timestamp: now}},
		fakeReporter{report: Report{Midpoint: 102, Timestamp: now}},
		fakeReporter{report: Report{Midpoint: 98, Timestamp: now}},
	}

	mid, err := medianReport(pair, reporters, now)
	require.NoError(t, err)
	require.Equal(t, 100.0, mid)
}

func TestMedianReportDiscardsStaleReports(t *testing.T) {
	now := time.Now()
	pair := PairKey{}
	reporters := []PriceReporter{
		fakeReporter{report: Report{Midpoint: 100, Timestamp: now.Add(-2 * PriceStalenessWindow)}},
		fakeReporter{report: Report{Midpoint: 104, Timestamp: now}},
	}

	mid, err := medianReport(pair, reporters, now)
	require.NoError(t, err)
	require.Equal(t, 104.0, mid)
}

func TestMedianReportErrorsWhenAllStale(t *testing.T) {
	now := time.Now()
	pair := PairKey{}
	reporters := []PriceReporter{
		fakeReporter{report: Report{Midpoint: 100, Timestamp: now.Add(-2 * PriceStalenessWindow)}},
	}

	_, err := medianReport(pair, reporters, now)
	require.Error(t, err)
	require.True(t, rerrors.Is(err, rerrors.KindMPC))
}

func TestAgreePriceAcceptsWithinTolerance(t *testing.T) {
	now := time.Now()
	pair := PairKey{}
	reporters := []PriceReporter{
		fakeReporter{report: Report{Midpoint: 100, Timestamp: now}},
	}

	agreed, err := agreePrice(pair, reporters, 100.1, now)
	require.NoError(t, err)
	require.Equal(t, 100.0, agreed)
}

func TestAgreePriceRejectsOutsideTolerance(t *testing.T) {
	now := time.Now()
	pair := PairKey{}
	reporters := []PriceReporter{
		fakeReporter{report: Report{Midpoint: 100, Timestamp: now}},
	}

	_, err := agreePrice(pair, reporters, 105, now)
	require.Error(t, err)
	require.True(t, rerrors.Is(err, rerrors.KindMPC))
}
