package wallet

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// ToScalars flattens the wallet's committed fields in a fixed order,
// padding balances/orders/fees out to their max capacity with default
// (zero) entries so the result always has the same length regardless of
// how full the wallet is -- the shape a circuit witness requires.
func (w *Wallet) ToScalars() []Scalar {
	out := make([]Scalar, 0, w.NumScalars())

	balances := w.Balances.Values()
	for i := 0; i < MaxBalances; i++ {
		var b Balance
		if i < len(balances) {
			b = balances[i]
		}
		out = append(out, b.ToScalars()...)
	}

	orders := w.Orders.Values()
	for i := 0; i < MaxOrders; i++ {
		var o Order
		if i < len(orders) {
			o = orders[i]
		}
		out = append(out, o.ToScalars()...)
	}

	for i := 0; i < MaxFees; i++ {
		var f Fee
		if i < len(w.Fees) {
			f = w.Fees[i]
		}
		out = append(out, f.ToScalars()...)
	}

	out = append(out, w.Keychain.Public.PkRoot.Words[:]...)
	out = append(out, w.Keychain.Public.PkMatch.Key)

	return out
}

// NumScalars is the fixed length ToScalars always returns.
func (w *Wallet) NumScalars() int {
	return MaxBalances*Balance{}.NumScalars() +
		MaxOrders*Order{}.NumScalars() +
		MaxFees*Fee{}.NumScalars() +
		RootKeyWords + 1
}

// SplitShares additively splits the wallet's scalar encoding into a private
// share (drawn uniformly at random) and a blinded public share such that
// private + public == blinder-shifted plaintext. This is the relayer-side
// half of what is normally an MPC-assisted split; since both shares are
// generated locally by the party that already knows the plaintext, no
// actual multi-party computation is needed here.
func (w *Wallet) SplitShares(blinder Scalar) (private, public WalletShare) {
	plain := w.ToScalars()
	private = make(WalletShare, len(plain))
	public = make(WalletShare, len(plain))

	for i, s := range plain {
		r := randomScalar()
		private[i] = r
		blinded := s.Add(blinder)
		public[i] = blinded.Sub(r)
	}
	return private, public
}

// Open recovers the wallet's plaintext scalar encoding from a share pair
// and blinder, without mutating w -- callers typically use this to verify
// a counterparty-supplied share pair before trusting it, via
// CheckShareIdentity.
func (w *Wallet) Open(private, public WalletShare, blinder Scalar) ([]Scalar, error) {
	if len(private) != len(public) {
		return nil, fmt.Errorf("wallet %s: share length mismatch: private=%d public=%d", w.ID, len(private), len(public))
	}
	out := make([]Scalar, len(private))
	for i := range private {
		blinded := private[i].Add(public[i])
		out[i] = blinded.Sub(blinder)
	}
	return out, nil
}

// CheckShareIdentity verifies that w's stored PrivateShares and
// BlindedPublicShares sum, after unblinding, to w's own plaintext scalar
// encoding -- the additive-share invariant from the data model.
func (w *Wallet) CheckShareIdentity() error {
	opened, err := w.Open(w.PrivateShares, w.BlindedPublicShares, w.Blinder)
	if err != nil {
		return err
	}
	want := w.ToScalars()
	if len(opened) != len(want) {
		return fmt.Errorf("wallet %s: opened share length %d != plaintext length %d", w.ID, len(opened), len(want))
	}
	for i := range want {
		if opened[i] != want[i] {
			return fmt.Errorf("wallet %s: share identity violated at scalar %d", w.ID, i)
		}
	}
	return nil
}

// Reblind deterministically samples a fresh blinder and share split for the
// wallet and installs them, returning the new blinder. Determinism here
// means "uses a CSPRNG and never reuses a blinder across calls", matching
// the original's reblind_wallet contract that two reblinds of the same
// wallet never collide; it does not mean reproducible output for equal
// inputs.
func (w *Wallet) Reblind() Scalar {
	blinder := randomScalar()
	private, public := w.SplitShares(blinder)
	w.Blinder = blinder
	w.PrivateShares = private
	w.BlindedPublicShares = public
	return blinder
}

// GetPrivateShareCommitment returns a commitment to the wallet's private
// shares alone, used by the relayer to prove it holds a consistent private
// share without revealing it.
func (w *Wallet) GetPrivateShareCommitment() Scalar {
	return hashScalars(w.PrivateShares...)
}

// GetWalletShareCommitment returns the full commitment to the wallet's
// combined (private, public) share pair -- the value the contract stores
// as the wallet's leaf in its Merkle tree.
func (w *Wallet) GetWalletShareCommitment() Scalar {
	all := make([]Scalar, 0, len(w.PrivateShares)+len(w.BlindedPublicShares))
	all = append(all, w.PrivateShares...)
	all = append(all, w.BlindedPublicShares...)
	return hashScalars(all...)
}

// GetWalletNullifier returns the nullifier the contract will mark spent
// once this wallet state is consumed by a subsequent update. Nullifiers
// are derived from the full wallet share commitment and the wallet's
// blinder.
func (w *Wallet) GetWalletNullifier() Scalar {
	return hashScalars(w.GetWalletShareCommitment(), w.Blinder)
}

// NeedsNewCommitmentProof reports whether the wallet's cached Merkle proof
// has aged past the point the relayer is willing to submit it without
// refreshing -- the contract's root advances as other wallets update, and
// a proof against a root too many updates in the past will be rejected.
func (w *Wallet) NeedsNewCommitmentProof() bool {
	return w.MerkleProof == nil || w.ProofStaleness > MaxProofStaleness
}

// RemoveDefaultElements strips default (zero-value) balances, orders, and
// fees that may have accumulated, e.g. after a counterparty's match
// consumed an order down to zero. Capacity padding is re-applied at
// ToScalars time, so the wallet is free to hold fewer than the max between
// calls.
func (w *Wallet) RemoveDefaultElements() {
	for _, k := range append([]MintID(nil), w.Balances.Keys()...) {
		if b, _ := w.Balances.Get(k); b.IsDefault() {
			w.Balances.Delete(k)
		}
	}
	for _, k := range append([]OrderID(nil), w.Orders.Keys()...) {
		if o, _ := w.Orders.Get(k); o.IsDefault() {
			w.Orders.Delete(k)
		}
	}
	kept := w.Fees[:0:0]
	for _, f := range w.Fees {
		if !f.IsDefault() {
			kept = append(kept, f)
		}
	}
	w.Fees = kept
}

func randomScalar() Scalar {
	max := new(big.Int).Lsh(big.NewInt(1), 8*ScalarMaxBytes)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		panic(fmt.Sprintf("wallet: reading randomness: %v", err))
	}
	return ScalarFromBigInt(n)
}
