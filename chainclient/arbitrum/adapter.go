package arbitrum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/darkpool-labs/relayer/chainclient"
	"github.com/darkpool-labs/relayer/gossip"
	"github.com/darkpool-labs/relayer/handshake"
	"github.com/darkpool-labs/relayer/rerrors"
	"github.com/darkpool-labs/relayer/taskdriver"
	"github.com/darkpool-labs/relayer/wallet"
)

// These hold *Client to the three interfaces it needs to satisfy. gossip
// and taskdriver each declare their own narrow local ChainClient interface
// rather than importing chainclient, so Client never needs to change shape
// for either of them -- this file is the only place that knows about all
// three at once.
var (
	_ chainclient.ChainClient = (*Client)(nil)
	_ gossip.ChainClient      = (*Client)(nil)
	_ taskdriver.ChainClient  = (*Client)(nil)
)

// NullifierSpent satisfies gossip.ChainClient. The order book's proof
// validation path is synchronous with no caller deadline to thread through,
// so this runs the canonical call against a background context.
func (c *Client) NullifierSpent(nullifier wallet.Scalar) (bool, error) {
	return c.IsNullifierSpent(context.Background(), nullifier)
}

// IsHistoricalRoot satisfies gossip.ChainClient.
func (c *Client) IsHistoricalRoot(root wallet.Scalar) (bool, error) {
	return c.RootInHistory(context.Background(), root)
}

// SubmitNewWallet satisfies taskdriver.ChainClient, assembling calldata
// from the wallet's current blinded share.
func (c *Client) SubmitNewWallet(ctx context.Context, w *wallet.Wallet) (taskdriver.TxHash, error) {
	tx, err := c.NewWallet(ctx, bundleForWallet(w))
	return taskdriver.TxHash(tx), err
}

// SubmitUpdateWallet satisfies taskdriver.ChainClient.
func (c *Client) SubmitUpdateWallet(ctx context.Context, w *wallet.Wallet) (taskdriver.TxHash, error) {
	tx, err := c.UpdateWallet(ctx, bundleForWallet(w), walletUpdateSignature(w))
	return taskdriver.TxHash(tx), err
}

// SubmitMatchSettle satisfies taskdriver.ChainClient. The settlement
// payload already carries both parties' agreed terms and this node's
// signature over them; it travels as the statement bytes, with the
// signature itself doubling as the calldata the contract authenticates
// against.
func (c *Client) SubmitMatchSettle(ctx context.Context, payload handshake.SettleMatchPayload) (taskdriver.TxHash, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", rerrors.Serialization(fmt.Errorf("marshaling settle-match payload: %w", err))
	}
	tx, err := c.ProcessMatchSettle(ctx, chainclient.ProofBundle{Parts: [][]byte{body, payload.Signature}})
	return taskdriver.TxHash(tx), err
}

// AwaitFinality satisfies taskdriver.ChainClient, polling the transaction
// receipt with bounded exponential backoff.
func (c *Client) AwaitFinality(ctx context.Context, tx taskdriver.TxHash) error {
	hash := common.HexToHash(string(tx))
	return chainclient.AwaitFinality(ctx, func(ctx context.Context) (confirmed bool, mined bool, err error) {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if errors.Is(err, ethereum.NotFound) {
			_, isPending, pendErr := c.backend.TransactionByHash(ctx, hash)
			if pendErr != nil {
				return false, false, nil
			}
			return false, isPending, nil
		}
		if err != nil {
			return false, false, err
		}
		return receipt.Status == types.ReceiptStatusSuccessful, true, nil
	})
}

// ReindexWallet satisfies taskdriver.ChainClient. It refreshes the root the
// contract currently reports; recomputing the actual authentication path
// against that root is circuit-side math the relayer doesn't implement
// (see wallet.MerkleAuthPath's doc comment), so Leaves/Index are left for
// whatever component eventually owns that reconstruction.
func (c *Client) ReindexWallet(ctx context.Context, w *wallet.Wallet) (*wallet.MerkleAuthPath, error) {
	root, err := c.CurrentRoot(ctx)
	if err != nil {
		return nil, err
	}
	path := &wallet.MerkleAuthPath{Root: root}
	if w.MerkleProof != nil {
		path.Leaves = w.MerkleProof.Leaves
		path.Index = w.MerkleProof.Index
	}
	return path, nil
}

// FindPublicBlinderTransaction satisfies taskdriver.ChainClient, translating
// the not-found sentinel into taskdriver's (..., false, nil) convention
// instead of propagating it as an error.
func (c *Client) FindPublicBlinderTransaction(ctx context.Context, w *wallet.Wallet) (taskdriver.TxHash, bool, error) {
	tx, err := c.GetPublicBlinderTransaction(ctx, w.GetWalletShareCommitment())
	if err != nil {
		var rerr *rerrors.Error
		if errors.As(err, &rerr) && errors.Is(rerr.Cause, errBlinderNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return taskdriver.TxHash(tx), true, nil
}

// bundleForWallet serializes a wallet's blinded public share into the
// newWallet/updateWallet calldata's first argument. The proof and statement
// bytes a real submission needs are the prover's job to fill in upstream of
// this client (proof generation is out of scope here); this bundle carries
// only the share the relayer itself is responsible for publishing.
func bundleForWallet(w *wallet.Wallet) chainclient.ProofBundle {
	return chainclient.ProofBundle{Parts: [][]byte{scalarsToBytes(w.BlindedPublicShares)}}
}

func scalarsToBytes(shares wallet.WalletShare) []byte {
	out := make([]byte, 0, len(shares)*wallet.ScalarMaxBytes)
	for _, s := range shares {
		out = append(out, s[:]...)
	}
	return out
}

// walletUpdateSignature is left nil: authorizing a wallet update signs over
// the non-native root key the keychain package represents as split scalar
// limbs, a signature scheme this client doesn't implement (see
// wallet.Keychain's NonNativeKey doc comment).
func walletUpdateSignature(w *wallet.Wallet) chainclient.Signature {
	return nil
}
