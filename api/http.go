// Package api exposes the relayer's thin external HTTP/WS surface: wallet
// lifecycle endpoints that enqueue tasks onto the replicated task driver,
// a per-wallet replica lookup, exchange health reporting, and a liveness
// probe. See core/src/api_server/http_handlers.rs in the original source
// for the handler shapes this is grounded on; proof generation, matching,
// and settlement all happen off this request path, in the task driver.
package api

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/darkpool-labs/relayer/gossip"
	"github.com/darkpool-labs/relayer/handshake"
	"github.com/darkpool-labs/relayer/state"
	"github.com/darkpool-labs/relayer/wallet"
)

// Server wires the replicated state store, gossip peer index, and price
// reporters into an http.Handler. It holds no state of its own beyond
// these collaborators.
type Server struct {
	State    *state.State
	Gossip   *gossip.Server
	Reporter handshake.PriceReporter
	Pairs    []handshake.PairKey
}

// Mux builds the representative route set. Go 1.21's net/http ServeMux has
// no method-aware path patterns, so the one route carrying a path
// parameter (/wallet/{id}/orders) is prefix-matched and parsed by hand,
// the way the teacher's rpc listeners dispatch on a raw path string before
// handing off to a typed handler.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", s.handlePing)
	mux.HandleFunc("/wallet", s.handleCreateWallet)
	mux.HandleFunc("/wallet/", s.handleWalletOrders)
	mux.HandleFunc("/replicas", s.handleReplicas)
	mux.HandleFunc("/exchange/health", s.handleExchangeHealth)
	mux.HandleFunc("/stream", s.handleStream)
	return mux
}

// pingResponse mirrors PingResponse from the original handler: a single
// millis-since-epoch timestamp proving the relayer is alive and its clock
// is sane.
type pingResponse struct {
	Timestamp int64 `json:"timestamp"`
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pingResponse{Timestamp: time.Now().UnixMilli()})
}

// createWalletRequest carries the new wallet's id and keychain; balances,
// orders, and fees are populated afterward via handleWalletOrders, since
// the original likewise creates an empty wallet shell first and lets
// order submission mutate it.
type createWalletRequest struct {
	WalletID wallet.WalletID `json:"wallet_id"`
	Keychain wallet.Keychain `json:"keychain"`
}

type createWalletResponse struct {
	WalletID wallet.WalletID `json:"wallet_id"`
	TaskID   uuid.UUID       `json:"task_id"`
}

func (s *Server) handleCreateWallet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req createWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.WalletID == uuid.Nil {
		req.WalletID = uuid.New()
	}

	wal := wallet.NewEmpty(req.WalletID, req.Keychain)
	wal.Reblind()

	if err := s.State.NewWallet(wal); err != nil {
		log.Errorf("creating wallet %s: %v", wal.ID, err)
		http.Error(w, "could not create wallet", http.StatusInternalServerError)
		return
	}

	taskID, err := s.State.AppendTask(state.TaskDescriptor{
		Kind:     state.TaskKindNewWallet,
		WalletID: wal.ID,
	})
	if err != nil {
		log.Errorf("enqueuing new-wallet task for %s: %v", wal.ID, err)
		http.Error(w, "could not enqueue wallet submission", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, createWalletResponse{WalletID: wal.ID, TaskID: taskID})
}

// updateOrdersRequest replaces a wallet's open orders wholesale. The
// original's analogous handler diffs and re-derives orders server-side
// from a richer request shape; this surface keeps the same "caller sends
// the desired end state, relayer reblinds and enqueues" contract in a
// simpler, fully-replacing form.
type updateOrdersRequest struct {
	Orders []orderRequest `json:"orders"`
}

type orderRequest struct {
	OrderID   wallet.OrderID  `json:"order_id"`
	QuoteMint wallet.MintID   `json:"quote_mint"`
	BaseMint  wallet.MintID   `json:"base_mint"`
	Side      wallet.OrderSide `json:"side"`
	Amount    uint64          `json:"amount"`
	Price     uint64          `json:"price"`
}

type updateOrdersResponse struct {
	TaskID uuid.UUID `json:"task_id"`
}

// handleWalletOrders serves POST /wallet/{id}/orders. Any other suffix
// under /wallet/ is a 404, and any other method is a 405.
func (s *Server) handleWalletOrders(w http.ResponseWriter, r *http.Request) {
	walletID, ok := walletIDFromOrdersPath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req updateOrdersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	wal, err := s.State.GetWallet(walletID)
	if err != nil {
		http.Error(w, "wallet not found", http.StatusNotFound)
		return
	}

	for _, o := range req.Orders {
		id := o.OrderID
		if id == uuid.Nil {
			id = uuid.New()
		}
		wal.Orders.Set(id, wallet.Order{
			QuoteMint: o.QuoteMint,
			BaseMint:  o.BaseMint,
			Side:      o.Side,
			Amount:    o.Amount,
			Price:     o.Price,
		})
	}
	if err := wal.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	wal.Reblind()

	if err := s.State.UpdateWallet(wal); err != nil {
		log.Errorf("updating wallet %s: %v", walletID, err)
		http.Error(w, "could not update wallet", http.StatusInternalServerError)
		return
	}

	taskID, err := s.State.AppendTask(state.TaskDescriptor{
		Kind:     state.TaskKindUpdateWallet,
		WalletID: walletID,
	})
	if err != nil {
		log.Errorf("enqueuing update-wallet task for %s: %v", walletID, err)
		http.Error(w, "could not enqueue wallet update", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusAccepted, updateOrdersResponse{TaskID: taskID})
}

// walletIDFromOrdersPath parses "/wallet/{id}/orders" and reports whether
// path matched that exact shape.
func walletIDFromOrdersPath(path string) (wallet.WalletID, bool) {
	trimmed := strings.TrimPrefix(path, "/wallet/")
	if trimmed == path {
		return wallet.WalletID{}, false
	}
	trimmed = strings.TrimSuffix(trimmed, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) != 2 || parts[1] != "orders" {
		return wallet.WalletID{}, false
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return wallet.WalletID{}, false
	}
	return id, true
}

// replicasResponse mirrors ReplicasHandler's response: the replica peer
// ids recorded against a single wallet, not a cluster-wide peer dump.
type replicasResponse struct {
	WalletID wallet.WalletID `json:"wallet_id"`
	Replicas []string        `json:"replicas"`
}

func (s *Server) handleReplicas(w http.ResponseWriter, r *http.Request) {
	idParam := r.URL.Query().Get("wallet_id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		http.Error(w, "missing or malformed wallet_id query parameter", http.StatusBadRequest)
		return
	}

	resp := replicasResponse{WalletID: id, Replicas: []string{}}
	wal, err := s.State.GetWallet(id)
	if err != nil {
		// The original returns an empty replica list for an unmanaged
		// wallet rather than a 404, since any node in the cluster may be
		// asked about a wallet only some peers manage.
		writeJSON(w, http.StatusOK, resp)
		return
	}
	for peerID := range wal.Metadata.Replicas {
		resp.Replicas = append(resp.Replicas, peerID)
	}
	writeJSON(w, http.StatusOK, resp)
}

// exchangeHealthResponse mirrors GetExchangeHealthStatesResponse: a median
// across every reporting exchange plus each exchange's own quote, taken
// across the configured pairs.
type exchangeHealthResponse struct {
	Median       float64            `json:"median"`
	AllExchanges map[string]float64 `json:"all_exchanges"`
}

func (s *Server) handleExchangeHealth(w http.ResponseWriter, r *http.Request) {
	if s.Reporter == nil || len(s.Pairs) == 0 {
		writeJSON(w, http.StatusOK, exchangeHealthResponse{AllExchanges: map[string]float64{}})
		return
	}

	all := make(map[string]float64, len(s.Pairs))
	for _, pair := range s.Pairs {
		report, err := s.Reporter.Midpoint(pair)
		if err != nil {
			log.Debugf("fetching midpoint for %+v: %v", pair, err)
			continue
		}
		all[report.Exchange] = report.Midpoint
	}

	var median float64
	if len(all) > 0 {
		vals := make([]float64, 0, len(all))
		for _, v := range all {
			vals = append(vals, v)
		}
		sort.Float64s(vals)
		mid := len(vals) / 2
		if len(vals)%2 == 1 {
			median = vals[mid]
		} else {
			median = (vals[mid-1] + vals[mid]) / 2
		}
	}
	writeJSON(w, http.StatusOK, exchangeHealthResponse{Median: median, AllExchanges: all})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("encoding response body: %v", err)
	}
}
