package wallet

// ScalarSerializable is implemented by any type that can be flattened into
// the fixed-size scalar vector the proof system and the MPC layer both
// operate on. Replaces the original's trait-object hierarchy
// (BaseType/CircuitBaseType/...) with a small set of narrow interfaces --
// idiomatic Go favors composition of single-method interfaces over a deep
// inheritance chain.
type ScalarSerializable interface {
	// ToScalars flattens the value into its canonical scalar encoding.
	ToScalars() []Scalar
}

// CircuitAllocatable is a ScalarSerializable value whose scalar length is
// fixed regardless of the value's contents, so it can be allocated as a
// constant-size witness in a circuit (balances/orders pad out to
// MaxBalances/MaxOrders with default entries to satisfy this).
type CircuitAllocatable interface {
	ScalarSerializable
	// NumScalars is the fixed number of scalars ToScalars always returns.
	NumScalars() int
}

// MPCAllocatable is a value that can be split into an additive secret
// share pair for use inside a two-party MPC computation.
type MPCAllocatable interface {
	// SplitShares returns (private, public) halves that sum, elementwise
	// over the scalar field, to the value's own ToScalars() encoding.
	SplitShares(blinder Scalar) (private, public WalletShare)
}

// Openable is a value that can be reconstructed from a private/public
// share pair and the blinder used to obscure them.
type Openable interface {
	// Open recovers the plaintext value from its two share halves.
	Open(private, public WalletShare, blinder Scalar) error
}

var (
	_ CircuitAllocatable = Balance{}
	_ CircuitAllocatable = Order{}
	_ CircuitAllocatable = Fee{}
)

// NumScalars for Balance is fixed: mint, amount.
func (b Balance) NumScalars() int { return 2 }

// ToScalars flattens a balance as (mint, amount).
func (b Balance) ToScalars() []Scalar {
	return []Scalar{mintToScalar(b.Mint), ScalarFromBigInt(bigFromUint64(b.Amount))}
}

// NumScalars for Order is fixed: quote mint, base mint, side, amount, price.
func (o Order) NumScalars() int { return 5 }

// ToScalars flattens an order as (quote_mint, base_mint, side, amount, price).
func (o Order) ToScalars() []Scalar {
	return []Scalar{
		mintToScalar(o.QuoteMint),
		mintToScalar(o.BaseMint),
		ScalarFromBigInt(bigFromUint64(uint64(o.Side))),
		ScalarFromBigInt(bigFromUint64(o.Amount)),
		ScalarFromBigInt(bigFromUint64(o.Price)),
	}
}

// NumScalars for Fee is fixed: settle key, gas addr, gas amount, percentage.
func (f Fee) NumScalars() int { return 4 }

// ToScalars flattens a fee as (settle_key, gas_addr, gas_amount, percentage_fee).
func (f Fee) ToScalars() []Scalar {
	return []Scalar{
		mintToScalar(f.SettleKey),
		mintToScalar(f.GasAddr),
		ScalarFromBigInt(bigFromUint64(f.GasTokenAmount)),
		ScalarFromBigInt(bigFromUint64(f.PercentageFee)),
	}
}
