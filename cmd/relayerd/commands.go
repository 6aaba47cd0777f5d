package main

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/decred/dcrd/dcrec/secp256k1/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli"

	"github.com/darkpool-labs/relayer/api"
	"github.com/darkpool-labs/relayer/boot"
	"github.com/darkpool-labs/relayer/chainclient/arbitrum"
	"github.com/darkpool-labs/relayer/gossip"
	"github.com/darkpool-labs/relayer/handshake"
	"github.com/darkpool-labs/relayer/network"
	"github.com/darkpool-labs/relayer/state"
	"github.com/darkpool-labs/relayer/taskdriver"
	"github.com/darkpool-labs/relayer/telemetry"
)

// runCommand is the relayer's only subcommand today: load the overlaid
// config, bring up every subsystem, and serve until signaled. Modeled as
// a urfave/cli.Command the way the teacher's RPC client commands are, even
// though this binary has exactly one of them -- new subcommands (e.g. a
// future "snapshot" one-shot) slot in the same way.
var runCommand = cli.Command{
	Name:  "run",
	Usage: "start the relayer node",
	Action: func(ctx *cli.Context) error {
		return runRelayer(ctx.GlobalString("config-file"))
	},
}

func runRelayer(configFile string) error {
	cfg, err := boot.Load(configFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	setupLoggers()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.SnapshotBucket != "" {
		if err := restoreSnapshot(ctx, cfg); err != nil {
			return fmt.Errorf("restoring raft snapshot: %w", err)
		}
	}

	metrics := telemetry.New(prometheus.DefaultRegisterer)

	st, err := state.New(state.Config{
		DataDir:    cfg.DataDir,
		RaftNodeID: cfg.RaftNodeID,
		SelfPeerID: cfg.SelfPeerID,
	})
	if err != nil {
		return fmt.Errorf("starting state layer: %w", err)
	}
	defer st.Stop() //nolint:errcheck

	signingKey, err := loadChainSigningKey(cfg.SigningKeyPath)
	if err != nil {
		return fmt.Errorf("loading chain signing key: %w", err)
	}

	chainClient, err := arbitrum.Dial(ctx, arbitrum.Config{
		RPCURL:          cfg.ChainRPCURL,
		ContractAddress: common.HexToAddress(cfg.ContractAddress),
		SigningKey:      signingKey,
		ChainID:         big.NewInt(cfg.ChainID),
		Chain:           arbitrumChainFor(cfg.ChainNetwork),
		Metrics:         metrics,
	})
	if err != nil {
		return fmt.Errorf("dialing chain: %w", err)
	}
	defer chainClient.Close()

	gossipServer := gossip.New(gossip.Config{
		SelfPeerID: gossip.PeerID(cfg.SelfPeerID),
		ClusterID:  cfg.ClusterID,
		State:      st,
		Chain:      chainClient,
		Verifier:   unimplementedProofVerifier{},
		Metrics:    metrics,
	})
	gossipServer.Start()
	defer gossipServer.Stop()

	// netKey is the node's own gossip wire identity, distinct from the
	// on-chain signing key above. Persistent node identity storage isn't
	// wired yet, so a fresh keypair is minted on every restart; every
	// ClusterJoin this node attempts afterward will need to be re-admitted.
	netKey, err := secp256k1.GeneratePrivateKey()
	if err != nil {
		return fmt.Errorf("generating node identity key: %w", err)
	}

	bus := network.NewBus()
	netMgr, err := network.New(gossipServer, bus, network.Config{
		DataDir:        cfg.DataDir,
		TargetOutbound: uint32(len(cfg.Peers)),
		SignKey:        netKey,
		VerifyKey:      netKey.PubKey(),
	})
	if err != nil {
		return fmt.Errorf("constructing network manager: %w", err)
	}
	netMgr.Start()
	defer netMgr.Stop()

	if cfg.PublicIP == "" {
		if ip, port, err := network.DiscoverExternalAddress(cfg.P2PPort); err != nil {
			log.Warnf("nat traversal discovery failed, staying unreachable from outside: %v", err)
		} else {
			cfg.PublicIP = ip.String()
			log.Infof("discovered external address %s:%d via nat-pmp", cfg.PublicIP, port)
		}
	}

	for _, peer := range cfg.Peers {
		netMgr.AddAddress(gossip.PeerID(peer), peer)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.P2PPort))
	if err != nil {
		return fmt.Errorf("listening for peers on port %d: %w", cfg.P2PPort, err)
	}
	go acceptPeers(ctx, netMgr, listener)
	defer listener.Close() //nolint:errcheck

	driver := taskdriver.New(st, chainClient, cfg.SelfPeerID, metrics)
	go func() {
		if err := driver.Run(ctx); err != nil && ctx.Err() == nil {
			log.Errorf("task driver stopped: %v", err)
		}
	}()

	scheduler := handshake.NewScheduler(st)
	runner := &handshake.Runner{
		State:      st,
		Fabrics:    unimplementedFabricFactory{},
		Circuit:    unimplementedMatchCircuit{},
		SigningKey: netKey,
		Metrics:    metrics,
	}
	pool := handshake.NewPool(runner)
	attempts := make(chan handshake.Attempt)
	go func() {
		if err := pool.Run(ctx, attempts); err != nil && ctx.Err() == nil {
			log.Errorf("handshake pool stopped: %v", err)
		}
	}()
	_ = scheduler // candidate production is wired once a network-backed handshake.Peer exists

	apiServer := &api.Server{
		State:    st,
		Gossip:   gossipServer,
		Reporter: stubPriceReporter{},
	}

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: withMetricsEndpoint(apiServer.Mux()),
	}
	go func() {
		log.Infof("http listener starting on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("http server stopped: %v", err)
		}
	}()
	defer httpSrv.Close() //nolint:errcheck

	log.Infof("relayer node %s started, cluster=%s", cfg.SelfPeerID, cfg.ClusterID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Infof("shutdown signal received, stopping")
	return nil
}

// acceptPeers runs the inbound TCP accept loop for gossip connections. The
// peer id of an inbound connection is unknown until its first frame, so
// each accepted connection is handed to the manager with an empty id --
// serveConn reads and dispatches its frames with an empty sender and never
// resolves or registers an id for it.
func acceptPeers(ctx context.Context, mgr *network.Manager, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Errorf("accepting peer connection: %v", err)
			continue
		}
		go func() {
			if err := mgr.Serve(ctx, "", conn); err != nil && ctx.Err() == nil {
				log.Warnf("peer connection closed: %v", err)
			}
		}()
	}
}

func withMetricsEndpoint(mux *http.ServeMux) http.Handler {
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func loadChainSigningKey(path string) (*ecdsa.PrivateKey, error) {
	return ethcrypto.LoadECDSA(path)
}

// restoreSnapshot downloads the newest raft snapshot from object storage
// into cfg.RaftSnapshotPath before the state layer opens its store, the
// same ordering the original bootloader enforces (fetch, then exec).
func restoreSnapshot(ctx context.Context, cfg *boot.Config) error {
	store, err := boot.NewS3SnapshotStore(ctx, cfg.SnapshotRegion)
	if err != nil {
		return err
	}
	_, err = boot.FetchLatestSnapshot(ctx, store, cfg.SnapshotBucket, cfg)
	return err
}

// unimplementedProofVerifier satisfies gossip.ProofVerifier. The relayer
// never implements the validity-proof system itself (see wallet.Keychain's
// NonNativeKey doc comment for the matching statement on the signing
// side); until a verifier component exists, every proof update is rejected
// rather than silently accepted.
type unimplementedProofVerifier struct{}

func (unimplementedProofVerifier) VerifyOrderValidity(proof []byte) (bool, error) {
	return false, fmt.Errorf("proof verification is not implemented in this build")
}

// unimplementedFabricFactory satisfies handshake.MPCFabricFactory.
type unimplementedFabricFactory struct{}

func (unimplementedFabricFactory) New(ctx context.Context, counterparty string) (handshake.MPCFabric, error) {
	return nil, fmt.Errorf("mpc fabric allocation is not implemented in this build")
}

// unimplementedMatchCircuit satisfies handshake.MatchCircuit.
type unimplementedMatchCircuit struct{}

func (unimplementedMatchCircuit) Execute(fabric handshake.MPCFabric, local, remote handshake.CircuitWitness) (handshake.MatchResult, error) {
	return handshake.MatchResult{}, fmt.Errorf("match circuit execution is not implemented in this build")
}

// stubPriceReporter satisfies handshake.PriceReporter and api's Reporter
// field. Exchange connectivity is an opaque collaborator the relayer never
// implements; until one is wired in, every pair reports as having no fresh
// price.
type stubPriceReporter struct{}

func (stubPriceReporter) Midpoint(pair handshake.PairKey) (handshake.Report, error) {
	return handshake.Report{}, fmt.Errorf("no price reporter configured in this build")
}

func arbitrumChainFor(networkName string) arbitrum.Chain {
	switch networkName {
	case "testnet":
		return arbitrum.ChainTestnet
	case "devnet":
		return arbitrum.ChainDevnet
	default:
		return arbitrum.ChainMainnet
	}
}
