package chainclient

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/darkpool-labs/relayer/rerrors"
)

func TestAwaitFinalitySucceedsOnceConfirmed(t *testing.T) {
	calls := 0
	err := AwaitFinality(context.Background(), func(ctx context.Context) (bool, bool, error) {
		calls++
		return calls >= 2, true, nil
	})
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestAwaitFinalityReturnsErrTxDroppedWhenNotMined(t *testing.T) {
	err := AwaitFinality(context.Background(), func(ctx context.Context) (bool, bool, error) {
		return false, false, nil
	})
	require.Error(t, err)
	require.True(t, rerrors.Is(err, rerrors.KindChain))
}

func TestAwaitFinalityPropagatesCheckError(t *testing.T) {
	wantErr := errors.New("rpc unavailable")
	err := AwaitFinality(context.Background(), func(ctx context.Context) (bool, bool, error) {
		return false, false, wantErr
	})
	require.Error(t, err)
	require.True(t, rerrors.Is(err, rerrors.KindChain))
}

func TestAwaitFinalityRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := AwaitFinality(ctx, func(ctx context.Context) (bool, bool, error) {
		return false, true, nil
	})
	require.Error(t, err)
}
