// Command orderbook-engine runs the settlement engine as a local,
// single-process dashboard: it wires a Coordinator to the in-memory
// reference MPC signer and light client, loads or initializes an encrypted
// state snapshot, and exposes a small set of subcommands for driving the
// engine by hand. Production deployments would swap the reference
// collaborators for real network clients and put a transport in front of
// the Coordinator instead of this CLI.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/arcsign/chainadapter/provider"
	_ "github.com/arcsign/chainadapter/provider/alchemy"

	"github.com/xchain-labs/orderbook-engine/internal/config"
	"github.com/xchain-labs/orderbook-engine/internal/lightclient"
	"github.com/xchain-labs/orderbook-engine/internal/mpcsigner"
	"github.com/xchain-labs/orderbook-engine/internal/orderbook"
	"github.com/xchain-labs/orderbook-engine/internal/snapshot"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	dataDir := os.Getenv("ORDERBOOK_DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	password := os.Getenv("ORDERBOOK_SNAPSHOT_PASSWORD")
	if password == "" {
		password = "dev-only-insecure-password"
	}

	owner := os.Getenv("ORDERBOOK_OWNER")
	if owner == "" {
		owner = "owner.orderbook"
	}

	cfgPath := filepath.Join(dataDir, "config.json")
	cfg, err := loadOrInitConfig(cfgPath, owner)
	if err != nil {
		fatal(err)
	}

	auditPath := filepath.Join(dataDir, "audit.ndjson")
	audit, err := orderbook.NewAuditLogger(auditPath)
	if err != nil {
		fatal(err)
	}

	signer := mpcsigner.New(nil)
	lc := lightclient.New(cfg.Owner)
	coordinator := orderbook.NewCoordinator(cfg.Owner, signer, lc, audit)

	snapPath := filepath.Join(dataDir, cfg.SnapshotPath)
	if cfg.SnapshotPath == "" {
		snapPath = filepath.Join(dataDir, "state.snapshot")
	}
	if _, statErr := os.Stat(snapPath); statErr == nil {
		if err := snapshot.Load(snapPath, coordinator, password); err != nil {
			fatal(fmt.Errorf("loading snapshot: %w", err))
		}
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "deposit":
		cmdDeposit(coordinator, cfg, args)
	case "make-intent":
		cmdMakeIntent(coordinator, args)
	case "take-intent":
		cmdTakeIntent(coordinator, args)
	case "get-intent":
		cmdGetIntent(coordinator, args)
	case "get-open-intents":
		cmdGetOpenIntents(coordinator, args)
	case "balance":
		cmdBalance(coordinator, args)
	case "withdraw":
		cmdWithdraw(coordinator, args)
	case "sync-heights":
		cmdSyncHeights(cfg, lc)
	case "version":
		fmt.Printf("orderbook-engine v%s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err := snapshot.Save(snapPath, coordinator, password); err != nil {
		fatal(fmt.Errorf("saving snapshot: %w", err))
	}
}

func loadOrInitConfig(path string, owner string) (*config.EngineConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := config.New(owner)
		cfg.AddCollaborator(config.CollaboratorConfig{ChainType: orderbook.ChainBTC, ChainID: "bitcoin", Enabled: false})
		cfg.AddCollaborator(config.CollaboratorConfig{ChainType: orderbook.ChainETH, ChainID: "ethereum", Enabled: false})
		cfg.AddCollaborator(config.CollaboratorConfig{ChainType: orderbook.ChainSOL, ChainID: "solana", Enabled: false})
		cfg.SnapshotPath = "state.snapshot"
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, err
		}
		out, err := cfg.ToJSON()
		if err != nil {
			return nil, err
		}
		if err := os.WriteFile(path, out, 0o600); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	cfg, err := config.FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func cmdDeposit(c *orderbook.Coordinator, cfg *config.EngineConfig, args []string) {
	if len(args) != 3 {
		fatal(fmt.Errorf("usage: deposit <user> <asset> <amount>"))
	}
	amount, err := orderbook.ParseAmount(args[2])
	if err != nil {
		fatal(err)
	}
	if err := c.DepositFor(cfg.Owner, args[0], orderbook.Asset(args[1]), amount); err != nil {
		fatal(err)
	}
	fmt.Printf("credited %s %s to %s\n", amount, args[1], args[0])
}

func cmdMakeIntent(c *orderbook.Coordinator, args []string) {
	if len(args) != 5 {
		fatal(fmt.Errorf("usage: make-intent <maker> <src_asset> <src_amount> <dst_asset> <dst_amount>"))
	}
	srcAmount, err := orderbook.ParseAmount(args[2])
	if err != nil {
		fatal(err)
	}
	dstAmount, err := orderbook.ParseAmount(args[4])
	if err != nil {
		fatal(err)
	}
	id, err := c.MakeIntent(args[0], orderbook.Asset(args[1]), srcAmount, orderbook.Asset(args[3]), dstAmount)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("intent #%d created\n", id)
}

func cmdTakeIntent(c *orderbook.Coordinator, args []string) {
	if len(args) != 3 {
		fatal(fmt.Errorf("usage: take-intent <taker> <intent_id> <amount>"))
	}
	intentID, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fatal(err)
	}
	amount, err := orderbook.ParseAmount(args[2])
	if err != nil {
		fatal(err)
	}
	subID, err := c.TakeIntent(args[0], intentID, amount)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("sub-intent #%d created\n", subID)
}

func cmdGetIntent(c *orderbook.Coordinator, args []string) {
	if len(args) != 1 {
		fatal(fmt.Errorf("usage: get-intent <intent_id>"))
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		fatal(err)
	}
	intent, ok := c.GetIntent(id)
	if !ok {
		fatal(fmt.Errorf("intent %d not found", id))
	}
	printJSON(intent)
}

func cmdGetOpenIntents(c *orderbook.Coordinator, args []string) {
	from, limit := uint64(0), uint64(50)
	if len(args) > 0 {
		v, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil {
			fatal(err)
		}
		from = v
	}
	if len(args) > 1 {
		v, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			fatal(err)
		}
		limit = v
	}
	printJSON(c.GetOpenIntents(from, limit))
}

func cmdBalance(c *orderbook.Coordinator, args []string) {
	if len(args) != 2 {
		fatal(fmt.Errorf("usage: balance <user> <asset>"))
	}
	fmt.Println(c.GetBalance(args[0], orderbook.Asset(args[1])).String())
}

func cmdWithdraw(c *orderbook.Coordinator, args []string) {
	if len(args) != 4 {
		fatal(fmt.Errorf("usage: withdraw <user> <asset> <amount> <chain>"))
	}
	amount, err := orderbook.ParseAmount(args[2])
	if err != nil {
		fatal(err)
	}
	chainType, err := orderbook.ParseChainType(args[3])
	if err != nil {
		fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var payload [32]byte
	wdID, err := c.Withdraw(ctx, args[0], orderbook.Asset(args[1]), amount, payload, "m/44'/0'/0'/0/0", chainType)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("withdrawal #%d submitted\n", wdID)
}

// cmdSyncHeights polls a configured height oracle for every enabled EVM
// collaborator and pushes the observed heights into the light client.
// Requires ORDERBOOK_ALCHEMY_API_KEY; collaborators without a recognized
// Alchemy network (chainId-networkId) are skipped with a warning.
func cmdSyncHeights(cfg *config.EngineConfig, lc *lightclient.LightClient) {
	apiKey := os.Getenv("ORDERBOOK_ALCHEMY_API_KEY")
	if apiKey == "" {
		fatal(fmt.Errorf("ORDERBOOK_ALCHEMY_API_KEY must be set to sync heights"))
	}

	registry := provider.GetRegistry()
	chainIDs := make(map[orderbook.ChainType]string)
	oracles := make(map[string]provider.BlockchainProvider)
	for _, collab := range cfg.Collaborators {
		if !collab.Enabled || collab.ChainID == "" {
			continue
		}
		prov, err := registry.GetProvider(&provider.ProviderConfig{
			ProviderType: "alchemy",
			APIKey:       apiKey,
			ChainID:      collab.ChainID,
			NetworkID:    "mainnet",
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", collab.ChainType, err)
			continue
		}
		chainIDs[collab.ChainType] = collab.ChainID
		oracles[collab.ChainID] = prov
	}
	if len(chainIDs) == 0 {
		fmt.Println("no enabled collaborators with an Alchemy-backed chain; nothing to sync")
		return
	}

	syncer := lightclient.NewHeightSyncer(lc, cfg.Owner, chainHeightOracle{oracles}, chainIDs, time.Minute)
	syncer.OnError(func(chainType orderbook.ChainType, err error) {
		fmt.Fprintf(os.Stderr, "height sync error for %s: %v\n", chainType, err)
	})
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	syncer.SyncOnce(ctx)
	fmt.Println("height sync complete")
}

// chainHeightOracle dispatches to the per-chain BlockchainProvider matching
// the requested chainID, satisfying lightclient.HeightOracle.
type chainHeightOracle struct {
	byChainID map[string]provider.BlockchainProvider
}

func (o chainHeightOracle) GetBlockNumber(ctx context.Context, chainID string) (uint64, error) {
	prov, ok := o.byChainID[chainID]
	if !ok {
		return 0, fmt.Errorf("no provider configured for chain %q", chainID)
	}
	return prov.GetBlockNumber(ctx, chainID)
}

func printJSON(v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(out))
}

func printUsage() {
	fmt.Println(`orderbook-engine - cross-chain intent settlement engine

Usage:
  orderbook-engine deposit <user> <asset> <amount>
  orderbook-engine make-intent <maker> <src_asset> <src_amount> <dst_asset> <dst_amount>
  orderbook-engine take-intent <taker> <intent_id> <amount>
  orderbook-engine get-intent <intent_id>
  orderbook-engine get-open-intents [from] [limit]
  orderbook-engine balance <user> <asset>
  orderbook-engine withdraw <user> <asset> <amount> <chain>
  orderbook-engine sync-heights
  orderbook-engine version

Environment:
  ORDERBOOK_DATA_DIR            directory for config/snapshot/audit files (default ./data)
  ORDERBOOK_SNAPSHOT_PASSWORD   password protecting the encrypted state snapshot
  ORDERBOOK_OWNER               owner account id, used on first run only
  ORDERBOOK_ALCHEMY_API_KEY     Alchemy API key, required by sync-heights`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
