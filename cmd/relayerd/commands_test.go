package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/darkpool-labs/relayer/chainclient/arbitrum"
	"github.com/darkpool-labs/relayer/handshake"
)

func TestArbitrumChainForMapsKnownNetworks(t *testing.T) {
	require.Equal(t, arbitrum.ChainTestnet, arbitrumChainFor("testnet"))
	require.Equal(t, arbitrum.ChainDevnet, arbitrumChainFor("devnet"))
	require.Equal(t, arbitrum.ChainMainnet, arbitrumChainFor("mainnet"))
	require.Equal(t, arbitrum.ChainMainnet, arbitrumChainFor(""))
	require.Equal(t, arbitrum.ChainMainnet, arbitrumChainFor("unknown"))
}

func TestUnimplementedCollaboratorsReturnExplicitErrors(t *testing.T) {
	_, err := unimplementedProofVerifier{}.VerifyOrderValidity(nil)
	require.Error(t, err)

	_, err = unimplementedFabricFactory{}.New(nil, "peer")
	require.Error(t, err)

	_, err = stubPriceReporter{}.Midpoint(handshake.PairKey{})
	require.Error(t, err)
}
