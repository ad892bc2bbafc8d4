package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/colorfulnotion/devchain/chainspecs"
	"github.com/colorfulnotion/devchain/common"
	log "github.com/colorfulnotion/devchain/log"
	"github.com/colorfulnotion/devchain/miner"
	"github.com/colorfulnotion/devchain/storage"
	"github.com/colorfulnotion/devchain/telemetry"
	"github.com/colorfulnotion/devchain/vm"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "devchain",
	Short: "Single node development chain",
}

func parseReward(s string) (*uint256.Int, error) {
	if s == "" {
		return nil, nil
	}
	if strings.HasPrefix(s, "0x") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}

// runOptions carries the `run` flags.
type runOptions struct {
	dataPath     string
	genesis      string
	interval     time.Duration
	gasLimit     uint64
	gasLimitSet  bool
	chainID      uint64
	chainIDSet   bool
	nodeKey      string
	beneficiary  string
	reward       string
	maxSteps     int
	skipEmpty    bool
	eventsFile   string
	otlpEndpoint string
	printState   bool
}

func (o *runOptions) config(spec *chainspecs.ChainSpec) (miner.Config, error) {
	cfg := miner.DefaultConfig()
	cfg.Interval = o.interval
	cfg.ChainID = spec.ChainID
	if o.chainIDSet {
		cfg.ChainID = o.chainID
	}
	if spec.GasLimit != 0 {
		cfg.GasLimit = spec.GasLimit
	}
	if o.gasLimitSet {
		cfg.GasLimit = o.gasLimit
	}
	if o.beneficiary != "" {
		if !common.IsHexAddress(o.beneficiary) {
			return cfg, fmt.Errorf("invalid beneficiary %q", o.beneficiary)
		}
		cfg.Beneficiary = common.HexToAddress(o.beneficiary)
	}
	reward, err := parseReward(o.reward)
	if err != nil {
		return cfg, fmt.Errorf("reward %q: %w", o.reward, err)
	}
	cfg.BlockReward = reward
	cfg.NodeKeyHex = strings.TrimPrefix(o.nodeKey, "0x")
	cfg.MaxResolutionSteps = o.maxSteps
	cfg.SkipEmptyBlocks = o.skipEmpty
	return cfg, nil
}

// runNode produces blocks until ctx is done. A fatal fault is returned after
// the tracer is flushed and the store is closed.
func runNode(ctx context.Context, o *runOptions) error {
	spec, err := chainspecs.ReadSpec(o.genesis)
	if err != nil {
		return fmt.Errorf("chain spec %s: %w", o.genesis, err)
	}
	cfg, err := o.config(spec)
	if err != nil {
		return err
	}

	if o.eventsFile != "" {
		f, err := os.OpenFile(o.eventsFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		log.SetEventWriter(f)
		defer log.SetEventWriter(nil)
	}

	shutdown, err := telemetry.InitTracer(ctx, o.otlpEndpoint, "devchain")
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(sctx); err != nil {
			log.Warn(log.MinerMonitoring, "tracer shutdown", "err", err)
		}
	}()

	store, err := openStore(o.dataPath)
	if err != nil {
		return err
	}
	defer store.Close()
	chain, err := storage.NewChainStore(store)
	if err != nil {
		return err
	}

	m, err := miner.NewMiner(cfg, chain, vm.TransferEngine{})
	if err != nil {
		return err
	}
	fmt.Printf("devchain %s node %s beneficiary %s chain id %d\n", common.Version, m.Address(), m.Beneficiary(), cfg.ChainID)

	if err := m.Run(ctx, spec); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		log.Error(log.MinerMonitoring, "block production stopped", "err", err)
		return fmt.Errorf("block production stopped: %w", err)
	}

	if o.printState {
		ledger, err := m.Ledger()
		if err != nil {
			return err
		}
		tree, err := ledger.Tree()
		if err != nil {
			return err
		}
		fmt.Println(tree.String())
	}
	if head := chain.CurrentBlock(); head != nil {
		fmt.Printf("stopped at block %d %s\n", head.Header.Number, head.Hash())
	}
	return nil
}

func openStore(dataPath string) (*storage.PersistenceStore, error) {
	if dataPath == "" {
		return storage.NewMemoryPersistenceStore()
	}
	return storage.NewPersistenceStore(dataPath)
}

func main() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	var (
		opts     runOptions
		logLevel string
		logJSON  bool
		debug    string
	)

	runCmd := &cobra.Command{
		Use:          "run",
		Short:        "Produce blocks until interrupted",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if logJSON {
				if err := log.InitJSONLogger(os.Stdout, logLevel); err != nil {
					return err
				}
			} else {
				log.InitLogger(logLevel)
			}
			log.EnableModules(debug)
			opts.chainIDSet = cmd.Flags().Changed("chain-id")
			opts.gasLimitSet = cmd.Flags().Changed("gas-limit")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runNode(ctx, &opts)
		},
	}

	runCmd.Flags().StringVarP(&opts.dataPath, "data-path", "d", "", "LevelDB directory; empty keeps the chain in memory")
	runCmd.Flags().StringVarP(&opts.genesis, "genesis", "g", "dev", "Chain spec network id or JSON file")
	runCmd.Flags().DurationVarP(&opts.interval, "interval", "i", miner.DefaultInterval, "Pause between blocks")
	runCmd.Flags().Uint64Var(&opts.gasLimit, "gas-limit", miner.DefaultGasLimit, "Block gas limit (overrides the chain spec)")
	runCmd.Flags().Uint64Var(&opts.chainID, "chain-id", vm.DefaultChainID, "Chain id for signature checks (overrides the chain spec)")
	runCmd.Flags().StringVarP(&opts.nodeKey, "node-key", "k", "", "secp256k1 node key in hex; generated when empty")
	runCmd.Flags().StringVarP(&opts.beneficiary, "beneficiary", "b", "", "Fee recipient; defaults to the node address")
	runCmd.Flags().StringVar(&opts.reward, "reward", "", "Block reward in wei (decimal or 0x hex)")
	runCmd.Flags().IntVar(&opts.maxSteps, "max-resolution-steps", 0, "Requirement round-trips allowed per transaction; 0 is unbounded")
	runCmd.Flags().BoolVar(&opts.skipEmpty, "skip-empty", false, "Do not produce blocks without transactions")
	runCmd.Flags().StringVarP(&logLevel, "log-level", "l", "info", "Log level (trace, debug, info, warn, error)")
	runCmd.Flags().BoolVar(&logJSON, "log-json", false, "Write logs as JSON to stdout")
	runCmd.Flags().StringVar(&debug, "debug", "", "Comma separated log modules to enable")
	runCmd.Flags().StringVar(&opts.eventsFile, "events-file", "", "Append authoring events to this file")
	runCmd.Flags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP collector host:port for traces")
	runCmd.Flags().BoolVar(&opts.printState, "print-state", false, "Print the head state tree on exit")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version and commit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("devchain %s (%s)\n", common.Version, common.GetCommitHash())
		},
	}

	rootCmd.AddCommand(runCmd, versionCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
