package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/darkpool-labs/relayer/handshake"
	"github.com/darkpool-labs/relayer/state"
	"github.com/darkpool-labs/relayer/wallet"
)

var errNoReport = errors.New("no report for pair")

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := state.New(state.Config{DataDir: t.TempDir(), RaftNodeID: 1, SelfPeerID: "self"})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Stop()) })
	return &Server{State: s}
}

func TestWalletIDFromOrdersPathParsesValidPath(t *testing.T) {
	id := uuid.New()
	got, ok := walletIDFromOrdersPath("/wallet/" + id.String() + "/orders")
	require.True(t, ok)
	require.Equal(t, id, got)
}

func TestWalletIDFromOrdersPathRejectsOtherSuffixes(t *testing.T) {
	_, ok := walletIDFromOrdersPath("/wallet/" + uuid.New().String())
	require.False(t, ok)

	_, ok = walletIDFromOrdersPath("/wallet/not-a-uuid/orders")
	require.False(t, ok)

	_, ok = walletIDFromOrdersPath("/other/")
	require.False(t, ok)
}

func TestHandlePingReturnsTimestamp(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	rec := httptest.NewRecorder()

	srv.Mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp pingResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Greater(t, resp.Timestamp, int64(0))
}

func TestHandleCreateWalletThenOrdersRoundTrips(t *testing.T) {
	srv := newTestServer(t)

	createBody, err := json.Marshal(createWalletRequest{})
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/wallet", bytes.NewReader(createBody))
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created createWalletResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEqual(t, uuid.Nil, created.WalletID)

	ordersBody, err := json.Marshal(updateOrdersRequest{
		Orders: []orderRequest{{Side: wallet.OrderSideBuy, Amount: 10, Price: 5}},
	})
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/wallet/"+created.WalletID.String()+"/orders", bytes.NewReader(ordersBody))
	rec = httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	wal, err := srv.State.GetWallet(created.WalletID)
	require.NoError(t, err)
	require.Equal(t, 1, wal.Orders.Len())
}

func TestHandleReplicasReturnsEmptyForUnknownWallet(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/replicas?wallet_id="+uuid.New().String(), nil)
	rec := httptest.NewRecorder()

	srv.Mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp replicasResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Empty(t, resp.Replicas)
}

func TestHandleReplicasRejectsMissingWalletID(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/replicas", nil)
	rec := httptest.NewRecorder()

	srv.Mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

type stubReporter struct {
	reports map[handshake.PairKey]handshake.Report
}

func (s stubReporter) Midpoint(pair handshake.PairKey) (handshake.Report, error) {
	r, ok := s.reports[pair]
	if !ok {
		return handshake.Report{}, errNoReport
	}
	return r, nil
}

func TestHandleExchangeHealthReportsMedian(t *testing.T) {
	pair := handshake.NewPairKey(wallet.MintID{1}, wallet.MintID{2})
	srv := newTestServer(t)
	srv.Reporter = stubReporter{reports: map[handshake.PairKey]handshake.Report{
		pair: {Exchange: "binance", Midpoint: 100},
	}}
	srv.Pairs = []handshake.PairKey{pair}

	req := httptest.NewRequest(http.MethodGet, "/exchange/health", nil)
	rec := httptest.NewRecorder()
	srv.Mux().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp exchangeHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, float64(100), resp.Median)
	require.Equal(t, float64(100), resp.AllExchanges["binance"])
}
