package arbitrum

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/darkpool-labs/relayer/chainclient"
	"github.com/darkpool-labs/relayer/rerrors"
	"github.com/darkpool-labs/relayer/telemetry"
)

// Config configures a Client.
type Config struct {
	RPCURL          string
	ContractAddress common.Address
	SigningKey      *ecdsa.PrivateKey
	ChainID         *big.Int
	Chain           Chain

	// Metrics is optional; a nil value disables submission metrics.
	Metrics *telemetry.Metrics
}

// Client is the relayer's binding to a deployed darkpool contract, backed
// by an ethclient.Client RPC connection. It implements
// chainclient.ChainClient directly; adapter.go adds the method sets
// taskdriver.ChainClient and gossip.ChainClient need so the same *Client
// satisfies all three without either package importing this one.
type Client struct {
	backend  *ethclient.Client
	contract *bind.BoundContract
	address  common.Address
	auth     *bind.TransactOpts
	chain    Chain

	events  chan chainclient.ChainEvent
	done    chan struct{}
	metrics *telemetry.Metrics
}

// Dial connects to the RPC endpoint in cfg and starts the background event
// watcher. Callers must call Close when finished.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	backend, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, rerrors.Chain(fmt.Errorf("dialing %s: %w", cfg.RPCURL, err), true)
	}

	parsed, err := abi.JSON(strings.NewReader(darkpoolABI))
	if err != nil {
		return nil, rerrors.Config(fmt.Errorf("parsing darkpool contract abi: %w", err))
	}

	auth, err := bind.NewKeyedTransactorWithChainID(cfg.SigningKey, cfg.ChainID)
	if err != nil {
		return nil, rerrors.Config(fmt.Errorf("building transactor for chain %d: %w", cfg.ChainID, err))
	}

	c := &Client{
		backend:  backend,
		contract: bind.NewBoundContract(cfg.ContractAddress, parsed, backend, backend, backend),
		address:  cfg.ContractAddress,
		auth:     auth,
		chain:    cfg.Chain,
		events:   make(chan chainclient.ChainEvent, eventChannelDepth),
		done:     make(chan struct{}),
		metrics:  cfg.Metrics,
	}
	go c.watchEvents(ctx)
	return c, nil
}

// Close stops the event watcher and tears down the RPC connection.
func (c *Client) Close() {
	close(c.done)
	c.backend.Close()
}

// IsNullifierSpent reports whether nullifier n has already been spent
// on-chain, per the isNullifierSpent view call.
func (c *Client) IsNullifierSpent(ctx context.Context, n chainclient.Nullifier) (bool, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "isNullifierSpent", n[:]); err != nil {
		return false, rerrors.Chain(fmt.Errorf("calling isNullifierSpent: %w", err), true)
	}
	return out[0].(bool), nil
}

// RootInHistory reports whether r was ever a valid Merkle root of the
// wallet tree, per the rootInHistory view call.
func (c *Client) RootInHistory(ctx context.Context, r chainclient.MerkleRoot) (bool, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "rootInHistory", r[:]); err != nil {
		return false, rerrors.Chain(fmt.Errorf("calling rootInHistory: %w", err), true)
	}
	return out[0].(bool), nil
}

// CurrentRoot returns the tree's current root, per the getRoot view call.
func (c *Client) CurrentRoot(ctx context.Context) (chainclient.MerkleRoot, error) {
	var out []interface{}
	if err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getRoot"); err != nil {
		return chainclient.MerkleRoot{}, rerrors.Chain(fmt.Errorf("calling getRoot: %w", err), true)
	}
	return bytesToScalar(out[0].([]byte)), nil
}

// NewWallet submits a newWallet transaction, committing bundle's blinder
// share and validity proof to the contract for the first time.
func (c *Client) NewWallet(ctx context.Context, bundle chainclient.ProofBundle) (chainclient.TxHash, error) {
	return c.transact(ctx, "newWallet", bundle)
}

// UpdateWallet submits an updateWallet transaction. sig authorizes the
// update over the statement bytes the contract already knows to expect.
func (c *Client) UpdateWallet(ctx context.Context, bundle chainclient.ProofBundle, sig chainclient.Signature) (chainclient.TxHash, error) {
	parts := append(append([][]byte(nil), bundle.Parts...), []byte(sig))
	return c.transact(ctx, "updateWallet", chainclient.ProofBundle{Parts: parts})
}

// ProcessMatchSettle submits a processMatchSettle transaction carrying both
// parties' already-assembled match payloads and proofs.
func (c *Client) ProcessMatchSettle(ctx context.Context, bundle chainclient.ProofBundle) (chainclient.TxHash, error) {
	return c.transact(ctx, "processMatchSettle", bundle)
}

func (c *Client) transact(ctx context.Context, method string, bundle chainclient.ProofBundle) (chainclient.TxHash, error) {
	opts := *c.auth
	opts.Context = ctx

	params := make([]interface{}, len(bundle.Parts))
	for i, p := range bundle.Parts {
		params[i] = p
	}

	tx, err := c.contract.Transact(&opts, method, params...)
	if err != nil {
		c.recordSubmission(method, "failure")
		return "", rerrors.Chain(fmt.Errorf("submitting %s: %w", method, err), true)
	}
	c.recordSubmission(method, "success")
	return chainclient.TxHash(tx.Hash().Hex()), nil
}

// recordSubmission is a no-op when the client was built without a metrics
// bundle.
func (c *Client) recordSubmission(method, outcome string) {
	if c.metrics == nil {
		return
	}
	c.metrics.ChainSubmissions.WithLabelValues(method, outcome).Inc()
}

// Events returns the channel of decoded Merkle/nullifier events the
// background watcher publishes to.
func (c *Client) Events() <-chan chainclient.ChainEvent {
	return c.events
}

func bytesToScalar(b []byte) (s chainclient.MerkleRoot) {
	if len(b) > len(s) {
		b = b[len(b)-len(s):]
	}
	copy(s[len(s)-len(b):], b)
	return s
}
