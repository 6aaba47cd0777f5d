package arbitrum

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLimbsToBigIntMatchesManualReconstruction(t *testing.T) {
	limb0 := uint64(14542100412480080699)
	limb1 := uint64(1005430062575839833)
	limb2 := uint64(8810205500711505764)
	limb3 := uint64(2121377557688093532)

	got := limbsToBigInt(limb0, limb1, limb2, limb3)

	want := new(big.Int).SetUint64(limb0)
	want.Add(want, new(big.Int).Lsh(new(big.Int).SetUint64(limb1), 64))
	want.Add(want, new(big.Int).Lsh(new(big.Int).SetUint64(limb2), 128))
	want.Add(want, new(big.Int).Lsh(new(big.Int).SetUint64(limb3), 192))

	require.Equal(t, 0, got.Cmp(want))
}

func TestEmptyLeafValueIsStable(t *testing.T) {
	require.False(t, EmptyLeafValue().IsZero())
	require.Equal(t, EmptyLeafValue(), EmptyLeafValue())
}
