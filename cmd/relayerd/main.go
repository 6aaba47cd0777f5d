// Command relayerd is the darkpool off-chain relayer node: it starts the
// replicated wallet/task state layer, the gossip and networking
// subsystems, the on-chain submission path, and the external HTTP/WS API,
// then runs until signaled. See commands.go for the run subcommand and
// the subsystem wiring.
package main

import (
	"fmt"
	"os"

	"github.com/decred/slog"
	flags "github.com/jessevdk/go-flags"
	"github.com/urfave/cli"

	"github.com/darkpool-labs/relayer/api"
	"github.com/darkpool-labs/relayer/boot"
	"github.com/darkpool-labs/relayer/build"
	"github.com/darkpool-labs/relayer/chainclient/arbitrum"
	"github.com/darkpool-labs/relayer/gossip"
	"github.com/darkpool-labs/relayer/handshake"
	"github.com/darkpool-labs/relayer/network"
	"github.com/darkpool-labs/relayer/state"
	"github.com/darkpool-labs/relayer/taskdriver"
)

var log = build.NewSubLogger("RELD", nil)

// cliOptions is the binary's top-level flag set, resolved before any
// urfave/cli command runs -- there is exactly one flag worth a persistent
// env binding (where the TOML config lives), so go-flags's struct-tag
// parsing is used for just this one value rather than reimplementing the
// ApplyEnvOverrides pattern boot.Config already owns for everything else.
type cliOptions struct {
	ConfigFile string `long:"config-file" env:"CONFIG_FILE" default:"/config.toml" description:"path to the relayer's TOML config file"`
}

func main() {
	var opts cliOptions
	parser := flags.NewParser(&opts, flags.IgnoreUnknown)
	if _, err := parser.Parse(); err != nil {
		if flagErr, ok := err.(*flags.Error); ok && flagErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	app := cli.NewApp()
	app.Name = "relayerd"
	app.Usage = "darkpool off-chain relayer node"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config-file",
			Value: opts.ConfigFile,
			Usage: "path to the relayer's TOML config file",
		},
	}
	app.Commands = []cli.Command{runCommand}
	app.Action = runCommand.Action

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLoggers stands up the rotating log writer and registers a
// subsystem logger for every package that declares one, mirroring the
// teacher's SetupLoggers entry point (one GenSubLogger call per package
// tag, fed into that package's UseLogger).
func setupLoggers() *build.RotatingLogWriter {
	w := build.NewRotatingLogWriter()

	register := func(tag string, use func(slog.Logger)) {
		logger := w.GenSubLogger(tag)
		w.RegisterSubLogger(tag, logger)
		use(logger)
	}

	register("API", api.UseLogger)
	register("BOOT", boot.UseLogger)
	register("ARBC", arbitrum.UseLogger)
	register("GOSP", gossip.UseLogger)
	register("HDSK", handshake.UseLogger)
	register("NETW", network.UseLogger)
	register("STAT", state.UseLogger)
	register("TKDR", taskdriver.UseLogger)

	log = w.GenSubLogger("RELD")
	w.RegisterSubLogger("RELD", log)
	return w
}
