// Package wallet defines the relayer's plaintext mirror of a user's
// on-chain committed darkpool account: balances, orders, fees, and the
// keychain and secret shares that let the relayer reconstruct and re-blind
// it. See circuit-types/src/fee.rs, keychain.rs and common/src/types/wallet.rs
// in the original source for the shapes this is grounded on.
package wallet

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/darkpool-labs/relayer/wallet/ordmap"
)

// Capacity bounds enforced on every wallet. Short vectors are padded with
// default entries when serialized for the circuit (ToScalars below); a
// wallet may never hold more than these counts locally.
const (
	MaxBalances = 10
	MaxOrders   = 4
	MaxFees     = 1
)

// WalletID is the wallet's stable 128-bit identifier.
type WalletID = uuid.UUID

// OrderID is an order's stable 128-bit identifier, unique within a wallet
// but also used as the network-wide order-book key.
type OrderID = uuid.UUID

// MintID is an ERC-20-address-sized unsigned integer, represented as a
// fixed-width array so it is usable as an ordmap key. Values narrower than
// 32 bytes are zero-extended on the high end.
type MintID [32]byte

func (m MintID) String() string { return fmt.Sprintf("%x", m[:]) }

// OrderSide is the direction of an order.
type OrderSide uint8

const (
	OrderSideBuy OrderSide = iota
	OrderSideSell
)

// Balance is the wallet's holding of a single mint.
type Balance struct {
	Mint   MintID
	Amount uint64
}

// IsDefault reports whether b is the zero-value default balance used for
// circuit padding.
func (b Balance) IsDefault() bool { return b == Balance{} }

// Order is a single order held in a wallet.
type Order struct {
	QuoteMint MintID
	BaseMint  MintID
	Side      OrderSide
	Amount    uint64
	// Price is a fixed-point limit price, quote per base, as the integer
	// numerator over an implicit 2^32 denominator -- mirrors FixedPoint in
	// circuit-types/src/fixed_point.rs (opaque fixed-point repr, not a
	// circuit concern for the relayer beyond matching semantics).
	Price uint64
}

// IsDefault reports whether o is the zero-value default order used for
// circuit padding.
func (o Order) IsDefault() bool { return o == Order{} }

// Fee is a relayer fee entry: a cluster settle key, the mint/amount used to
// cover gas, and the cluster's percentage take of a match.
type Fee struct {
	SettleKey      MintID
	GasAddr        MintID
	GasTokenAmount uint64
	// PercentageFee is a fixed-point fraction (see Order.Price comment).
	PercentageFee uint64
}

// IsDefault reports whether f is the zero-value default fee used for
// circuit padding.
func (f Fee) IsDefault() bool { return f == Fee{} }

// WalletShare is the (private or blinded-public) half of a wallet's
// additive secret-share split -- one scalar per scalar-serialized field of
// the wallet, see ToScalars.
type WalletShare []Scalar

// Add returns the elementwise sum of two equal-length shares. Panics if the
// lengths differ, which would indicate a schema mismatch between the two
// sides being combined -- a programmer error, not a runtime condition to
// recover from.
func (s WalletShare) Add(other WalletShare) WalletShare {
	if len(s) != len(other) {
		panic(fmt.Sprintf("wallet share length mismatch: %d vs %d", len(s), len(other)))
	}
	out := make(WalletShare, len(s))
	for i := range s {
		out[i] = s[i].Add(other[i])
	}
	return out
}

// MerkleAuthPath is the opening from a wallet's state commitment to the
// global Merkle root the contract maintains.
type MerkleAuthPath struct {
	Root   Scalar
	Leaves []Scalar
	Index  uint64
}

// WalletMetadata holds the replica set and other network-facing state that
// travels alongside a wallet but isn't part of its committed plaintext.
type WalletMetadata struct {
	Replicas map[string]struct{} // peer-id strings
}

// Wallet is the relayer's full plaintext view of a user's darkpool account.
type Wallet struct {
	ID       WalletID
	Balances *ordmap.Map[MintID, Balance]
	Orders   *ordmap.Map[OrderID, Order]
	Fees     []Fee
	Keychain Keychain

	// Blinder further obscures the wallet beyond the additive share split.
	Blinder Scalar
	// PrivateShares and BlindedPublicShares sum (elementwise, over the
	// scalar field) to the blinded plaintext wallet; unblinding the sum by
	// Blinder recovers the plaintext. See Open.
	PrivateShares       WalletShare
	BlindedPublicShares WalletShare

	MerkleProof    *MerkleAuthPath
	ProofStaleness uint64
	Metadata       WalletMetadata
}

// NewEmpty returns a wallet with the given id and no balances, orders, or
// fees -- the shape used by the NewWallet task before the first reblind.
func NewEmpty(id WalletID, keychain Keychain) *Wallet {
	return &Wallet{
		ID:       id,
		Balances: ordmap.New[MintID, Balance](),
		Orders:   ordmap.New[OrderID, Order](),
		Keychain: keychain,
		Metadata: WalletMetadata{Replicas: make(map[string]struct{})},
	}
}

// Validate checks the balance and order capacity invariants. It does not
// check per-order capitalization (see BalanceFeeForOrder) or the
// additive-share identity;
// callers that hold both share halves should also call CheckShareIdentity.
func (w *Wallet) Validate() error {
	if w.Balances.Len() > MaxBalances {
		return fmt.Errorf("wallet %s: %d balances exceeds max %d", w.ID, w.Balances.Len(), MaxBalances)
	}
	if w.Orders.Len() > MaxOrders {
		return fmt.Errorf("wallet %s: %d orders exceeds max %d", w.ID, w.Orders.Len(), MaxOrders)
	}
	if len(w.Fees) > MaxFees {
		return fmt.Errorf("wallet %s: %d fees exceeds max %d", w.ID, len(w.Fees), MaxFees)
	}
	return nil
}

// BalanceFeeForOrder returns the (balance, fee, fee_balance) triple a node
// would use to match order, or false if the order is uncapitalized (no
// matching balance, no non-default fee, or the fee balance can't cover
// gas). Matching is still allowed to proceed on an uncapitalized order's
// *counterparty* side; this method only governs whether the local side can
// settle its own leg.
func (w *Wallet) BalanceFeeForOrder(o Order) (Balance, Fee, Balance, bool) {
	var orderMint MintID
	switch o.Side {
	case OrderSideBuy:
		orderMint = o.QuoteMint
	case OrderSideSell:
		orderMint = o.BaseMint
	}

	balance, ok := w.Balances.Get(orderMint)
	if !ok {
		return Balance{}, Fee{}, Balance{}, false
	}

	var fee Fee
	found := false
	for _, f := range w.Fees {
		if !f.IsDefault() {
			fee = f
			found = true
			break
		}
	}
	if !found {
		return Balance{}, Fee{}, Balance{}, false
	}

	feeBalance, ok := w.Balances.Get(fee.GasAddr)
	if !ok || feeBalance.Amount < fee.GasTokenAmount {
		return Balance{}, Fee{}, Balance{}, false
	}

	return balance, fee, feeBalance, true
}

// Clone returns a deep copy safe to mutate independently of w.
func (w *Wallet) Clone() *Wallet {
	clone := &Wallet{
		ID:                  w.ID,
		Balances:            w.Balances.Clone(),
		Orders:              w.Orders.Clone(),
		Fees:                append([]Fee(nil), w.Fees...),
		Keychain:            w.Keychain,
		Blinder:             w.Blinder,
		PrivateShares:       append(WalletShare(nil), w.PrivateShares...),
		BlindedPublicShares: append(WalletShare(nil), w.BlindedPublicShares...),
		ProofStaleness:      w.ProofStaleness,
	}
	if w.MerkleProof != nil {
		mp := *w.MerkleProof
		mp.Leaves = append([]Scalar(nil), w.MerkleProof.Leaves...)
		clone.MerkleProof = &mp
	}
	clone.Metadata.Replicas = make(map[string]struct{}, len(w.Metadata.Replicas))
	for p := range w.Metadata.Replicas {
		clone.Metadata.Replicas[p] = struct{}{}
	}
	return clone
}
