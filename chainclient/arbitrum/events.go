package arbitrum

import (
	"context"
	"errors"
	"math/big"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/darkpool-labs/relayer/chainclient"
	"github.com/darkpool-labs/relayer/rerrors"
	"github.com/darkpool-labs/relayer/wallet"
)

// errBlinderNotFound is returned (wrapped in a *rerrors.Error) when no
// wallet-update log carrying the requested blinder share exists yet --
// errors.rs's BlinderNotFound, the Go-idiomatic way: a sentinel callers can
// errors.Is against instead of matching on a string variant name.
var errBlinderNotFound = errors.New("public blinder share not found in any wallet-update log")

// Event topics the watcher filters on. abi.rs only declares the contract's
// callable functions, not its event ABI, so these signatures are assumed to
// follow the darkpool contract's conventional Merkle/nullifier event shape
// rather than being transcribed from a retrieved source.
var (
	merkleInternalNodeChangedTopic = crypto.Keccak256Hash([]byte("MerkleInternalNodeChanged(uint8,uint256,uint256)"))
	merkleValueInsertedTopic       = crypto.Keccak256Hash([]byte("MerkleValueInserted(uint256,uint256)"))
	nullifierSpentTopic            = crypto.Keccak256Hash([]byte("NullifierSpent(uint256)"))
	walletUpdatedTopic             = crypto.Keccak256Hash([]byte("WalletUpdated(uint256)"))
)

// GetPublicBlinderTransaction scans WalletUpdated logs for one carrying s as
// its indexed blinder share, returning the most recent match.
func (c *Client) GetPublicBlinderTransaction(ctx context.Context, s wallet.Scalar) (chainclient.TxHash, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.address},
		Topics:    [][]common.Hash{{walletUpdatedTopic}, {common.BytesToHash(s[:])}},
	}
	logs, err := c.backend.FilterLogs(ctx, query)
	if err != nil {
		return "", rerrors.Chain(err, true)
	}
	if len(logs) == 0 {
		// Constructed directly rather than via rerrors.Chain so Cause stays
		// exactly errBlinderNotFound -- callers match on it with errors.Is
		// without depending on go-errors' stack wrapper preserving Unwrap.
		return "", &rerrors.Error{Kind: rerrors.KindChain, Cause: errBlinderNotFound}
	}
	return chainclient.TxHash(logs[len(logs)-1].TxHash.Hex()), nil
}

// watchEvents polls the contract's logs at eventFilterPollingInterval and
// republishes the ones the relayer cares about on c.events, until ctx is
// done or Close is called.
func (c *Client) watchEvents(ctx context.Context) {
	ticker := time.NewTicker(eventFilterPollingInterval)
	defer ticker.Stop()
	defer close(c.events)

	var from uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			latest, err := c.backend.BlockNumber(ctx)
			if err != nil {
				log.Warnf("polling latest block: %v", err)
				continue
			}
			if latest < from {
				continue
			}

			logs, err := c.backend.FilterLogs(ctx, ethereum.FilterQuery{
				Addresses: []common.Address{c.address},
				FromBlock: new(big.Int).SetUint64(from),
				ToBlock:   new(big.Int).SetUint64(latest),
			})
			if err != nil {
				log.Warnf("filtering contract logs: %v", err)
				continue
			}
			for _, lg := range logs {
				if ev, ok := decodeChainEvent(lg); ok {
					select {
					case c.events <- ev:
					default:
						log.Warnf("dropping chain event %s, subscriber channel full", ev.Kind)
					}
				}
			}
			from = latest + 1
		}
	}
}

func decodeChainEvent(lg types.Log) (chainclient.ChainEvent, bool) {
	if len(lg.Topics) == 0 {
		return chainclient.ChainEvent{}, false
	}
	tx := chainclient.TxHash(lg.TxHash.Hex())
	var kind chainclient.ChainEventKind
	switch lg.Topics[0] {
	case merkleInternalNodeChangedTopic:
		kind = chainclient.EventMerkleInternalNodeChanged
	case merkleValueInsertedTopic:
		kind = chainclient.EventMerkleValueInserted
	case nullifierSpentTopic:
		kind = chainclient.EventNullifierSpent
	default:
		return chainclient.ChainEvent{}, false
	}
	return chainclient.ChainEvent{Kind: kind, Value: logDataScalar(lg), Tx: tx}, true
}

func logDataScalar(lg types.Log) wallet.Scalar {
	var s wallet.Scalar
	data := lg.Data
	if len(data) > len(s) {
		data = data[len(data)-len(s):]
	}
	copy(s[len(s)-len(data):], data)
	return s
}
