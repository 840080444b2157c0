package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/hermeznetwork/forge-node/api/client"
	"github.com/hermeznetwork/forge-node/common"
	"github.com/hermeznetwork/forge-node/config"
	dbUtils "github.com/hermeznetwork/forge-node/db"
	"github.com/hermeznetwork/forge-node/db/statedb"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/forge-node/node"
	"github.com/hermeznetwork/tracerr"
	"github.com/iden3/go-iden3-crypto/babyjub"
	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v2"
)

const (
	flagCfg        = "cfg"
	flagYes        = "yes"
	flagCheckpoint = "checkpoint"
	flagURL        = "url"
	flagSK         = "privatekey"
	flagData       = "data"
	flagAccounts   = "accounts"
	flagNonce      = "nonce"
	flagMarket     = "market"
	nMigrations    = "nMigrations"
)

var (
	// version represents the program based on the git tag
	version = "v0.1.0"
	// commit represents the program based on the git commit
	commit = "dev"
	// date represents the date of application was built
	date = ""
)

func cmdVersion(*cli.Context) error {
	fmt.Printf("Version = \"%v\"\n", version)
	fmt.Printf("Build = \"%v\"\n", commit)
	fmt.Printf("Date = \"%v\"\n", date)
	return nil
}

func cmdGenBJJ(*cli.Context) error {
	sk := babyjub.NewRandPrivKey()
	skBuf := [32]byte(sk)
	id := common.IdentityFromPublicKey(sk.Public())
	fmt.Printf("Identity = \"%s\"\n", id)
	fmt.Printf("BJJPrivateKey = \"0x%s\"\n", hex.EncodeToString(skBuf[:]))
	return nil
}

func confirm(msg string) (bool, error) {
	fmt.Print(msg)
	var input string
	if _, err := fmt.Scanln(&input); err != nil {
		return false, tracerr.Wrap(err)
	}
	input = strings.ToLower(input)
	return input == "y" || input == "yes", nil
}

func openSQLDB(cfg *config.Node) (*sqlx.DB, error) {
	var dsn string
	switch cfg.HistoryDB.Driver {
	case "":
		return nil, tracerr.Wrap(fmt.Errorf("HistoryDB.Driver is not configured"))
	case dbUtils.DriverSQLite:
		dsn = dbUtils.SQLiteDSN(cfg.HistoryDB.SQLitePath)
	case dbUtils.DriverPostgres:
		pg := cfg.HistoryDB.PostgreSQL
		dsn = dbUtils.PostgresDSN(pg.Port, pg.Host, pg.User, pg.Password, pg.Name)
	}
	db, err := dbUtils.ConnectSQLDB(cfg.HistoryDB.Driver, dsn)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return db, nil
}

func cmdWipeDBs(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.ErrorsPath)
	if !c.Bool(flagYes) {
		ok, err := confirm("*WARNING* Are you sure you want to delete " +
			"the SQL DB and the StateDB? [y/N]: ")
		if err != nil || !ok {
			return tracerr.Wrap(err)
		}
	}
	if cfg.HistoryDB.Driver != "" {
		db, err := openSQLDB(cfg)
		if err != nil {
			return tracerr.Wrap(err)
		}
		log.Info("Wiping SQL DB...")
		if err := dbUtils.MigrationsDown(db.DB, cfg.HistoryDB.Driver, 0); err != nil {
			return tracerr.Wrap(fmt.Errorf("dbUtils.MigrationsDown: %w", err))
		}
	}
	if cfg.StateDB.Type == statedb.TypePebble {
		log.Info("Wiping StateDB...")
		if err := os.RemoveAll(cfg.StateDB.Path); err != nil {
			return tracerr.Wrap(fmt.Errorf("os.RemoveAll: %w", err))
		}
	}
	return nil
}

func cmdSQLMigrationDown(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.ErrorsPath)
	migrationsToRun := c.Uint(nMigrations)
	if migrationsToRun == 0 {
		return tracerr.Wrap(fmt.Errorf("%v is set to 0, this is equivalent to use the wipedbs "+
			"command. If this is your intention use the other command", nMigrations))
	}
	if !c.Bool(flagYes) {
		ok, err := confirm(fmt.Sprintf("*WARNING* Are you sure you want to revert "+
			"%d the SQL migrations? [y/N]: ", migrationsToRun))
		if err != nil || !ok {
			return tracerr.Wrap(err)
		}
	}
	db, err := openSQLDB(cfg)
	if err != nil {
		return tracerr.Wrap(err)
	}
	log.Infof("Reverting %d SQL migrations...", migrationsToRun)
	if err := dbUtils.MigrationsDown(db.DB, cfg.HistoryDB.Driver, migrationsToRun); err != nil {
		return tracerr.Wrap(fmt.Errorf("dbUtils.MigrationsDown: %w", err))
	}
	log.Info("SQL migrations down successfully")
	return nil
}

func cmdReset(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.ErrorsPath)
	if cfg.StateDB.Type != statedb.TypePebble {
		return tracerr.Wrap(fmt.Errorf("reset requires a %v StateDB", statedb.TypePebble))
	}
	checkpoint := c.Uint64(flagCheckpoint)
	sdb, err := statedb.NewStateDB(statedb.Config{
		Type: cfg.StateDB.Type,
		Path: cfg.StateDB.Path,
		Keep: cfg.StateDB.Keep,
	})
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("statedb.NewStateDB: %w", err))
	}
	defer sdb.Close()
	log.Infof("Reset StateDB to checkpoint %v...", checkpoint)
	if err := sdb.Reset(checkpoint); err != nil {
		return tracerr.Wrap(fmt.Errorf("sdb.Reset: %w", err))
	}
	return nil
}

func cmdListCheckpoints(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.ErrorsPath)
	sdb, err := statedb.NewStateDB(statedb.Config{
		Type: cfg.StateDB.Type,
		Path: cfg.StateDB.Path,
		Keep: cfg.StateDB.Keep,
	})
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("statedb.NewStateDB: %w", err))
	}
	defer sdb.Close()
	list, err := sdb.ListCheckpoints()
	if err != nil {
		return tracerr.Wrap(err)
	}
	fmt.Printf("Current = %v\n", sdb.CurrentCheckpoint())
	fmt.Printf("Checkpoints = %v\n", list)
	return nil
}

func waitSigInt() {
	stopCh := make(chan interface{})

	ossig := make(chan os.Signal, 1)
	signal.Notify(ossig, os.Interrupt)
	const forceStopCount = 3
	go func() {
		n := 0
		for sig := range ossig {
			if sig == os.Interrupt {
				log.Info("Received Interrupt Signal")
				stopCh <- nil
				n++
				if n == forceStopCount {
					log.Fatalf("Received %v Interrupt Signals", forceStopCount)
				}
			}
		}
	}()
	<-stopCh
}

func cmdRun(c *cli.Context) error {
	cfg, err := parseCli(c)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error parsing flags and config: %w", err))
	}
	log.Init(cfg.Log.Level, cfg.Log.ErrorsPath)
	node.Version = c.App.Version
	innerNode, err := node.NewNode(cfg)
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("error starting node: %w", err))
	}
	innerNode.Start()
	waitSigInt()
	innerNode.Stop()

	return nil
}

func printJSON(v interface{}) error {
	bs, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return tracerr.Wrap(err)
	}
	fmt.Println(string(bs))
	return nil
}

func cmdMarket(c *cli.Context) error {
	cl := client.NewClient(c.String(flagURL))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second) //nolint:gomnd
	defer cancel()
	if !c.IsSet(flagMarket) {
		markets, err := cl.Markets(ctx)
		if err != nil {
			return tracerr.Wrap(err)
		}
		return printJSON(markets)
	}
	id, err := common.HexToIdentity(c.String(flagMarket))
	if err != nil {
		return tracerr.Wrap(err)
	}
	state, err := cl.Market(ctx, id)
	if err != nil {
		return tracerr.Wrap(err)
	}
	return printJSON(state)
}

func parseSK(s string) (*babyjub.PrivateKey, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	var sk babyjub.PrivateKey
	if len(b) != len(sk) {
		return nil, tracerr.Wrap(fmt.Errorf("invalid private key length %v", len(b)))
	}
	copy(sk[:], b)
	return &sk, nil
}

func cmdSubmit(c *cli.Context) error {
	data, err := hex.DecodeString(strings.TrimPrefix(c.String(flagData), "0x"))
	if err != nil {
		return tracerr.Wrap(fmt.Errorf("invalid %v: %w", flagData, err))
	}
	op := &common.Operation{Data: data, Nonce: c.Uint64(flagNonce)}
	for _, s := range c.StringSlice(flagAccounts) {
		id, err := common.HexToIdentity(s)
		if err != nil {
			return tracerr.Wrap(fmt.Errorf("invalid account %v: %w", s, err))
		}
		op.Accounts = append(op.Accounts, id)
	}
	for _, s := range c.StringSlice(flagSK) {
		sk, err := parseSK(s)
		if err != nil {
			return tracerr.Wrap(err)
		}
		op.Sign(sk)
	}
	cl := client.NewClient(c.String(flagURL))
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second) //nolint:gomnd
	defer cancel()
	res, err := cl.SubmitOperation(ctx, op)
	if err != nil {
		return tracerr.Wrap(err)
	}
	return printJSON(res)
}

func getConfig(c *cli.Context) (*config.Node, error) {
	nodeCfgPath := c.String(flagCfg)
	if nodeCfgPath == "" {
		return nil, tracerr.Wrap(fmt.Errorf("required flag \"%v\" not set", flagCfg))
	}
	cfg, err := config.LoadNode(nodeCfgPath)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	return cfg, nil
}

func parseCli(c *cli.Context) (*config.Node, error) {
	cfg, err := getConfig(c)
	if err != nil {
		if err := cli.ShowAppHelp(c); err != nil {
			panic(err)
		}
		return nil, tracerr.Wrap(err)
	}
	return cfg, nil
}

func main() {
	app := cli.NewApp()
	app.Name = "forgenode"
	app.Version = version
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:     flagCfg,
			Usage:    "Node configuration `FILE`",
			Required: true,
		},
	}
	clientFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  flagURL,
			Usage: "`URL` of the node API",
			Value: "http://localhost:8086",
		},
	}

	app.Commands = []*cli.Command{
		{
			Name:    "version",
			Aliases: []string{},
			Usage:   "Show the application version and build",
			Action:  cmdVersion,
		},
		{
			Name:    "genbjj",
			Aliases: []string{},
			Usage:   "Generate a new BabyJubJub key and its identity",
			Action:  cmdGenBJJ,
		},
		{
			Name:    "wipedbs",
			Aliases: []string{},
			Usage:   "Wipe the SQL DB (HistoryDB) and the StateDB, leaving the DBs in a clean state",
			Action:  cmdWipeDBs,
			Flags: append(flags,
				&cli.BoolFlag{
					Name:     flagYes,
					Usage:    "automatic yes to the prompt",
					Required: false,
				}),
		},
		{
			Name:    "migratesqldown",
			Aliases: []string{},
			Usage:   "Revert migrations of the SQL DB (HistoryDB)",
			Action:  cmdSQLMigrationDown,
			Flags: append(flags,
				&cli.UintFlag{
					Name:     nMigrations,
					Usage:    "amount of migrations to be reverted",
					Required: true,
				},
				&cli.BoolFlag{
					Name:     flagYes,
					Usage:    "automatic yes to the prompt",
					Required: false,
				}),
		},
		{
			Name:    "checkpoints",
			Aliases: []string{},
			Usage:   "List the checkpoints of the StateDB",
			Action:  cmdListCheckpoints,
			Flags:   flags,
		},
		{
			Name:    "reset",
			Aliases: []string{},
			Usage:   "Reset the StateDB to a checkpoint, the HistoryDB is kept",
			Action:  cmdReset,
			Flags: append(flags,
				&cli.Uint64Flag{
					Name:     flagCheckpoint,
					Usage:    "checkpoint to reset to, 0 empties the StateDB",
					Required: true,
				}),
		},
		{
			Name:    "run",
			Aliases: []string{},
			Usage:   "Run the forge node",
			Action:  cmdRun,
			Flags:   flags,
		},
		{
			Name:    "market",
			Aliases: []string{},
			Usage:   "Show the markets of a running node, or the conversion state of one",
			Action:  cmdMarket,
			Flags: append(clientFlags,
				&cli.StringFlag{
					Name:  flagMarket,
					Usage: "`IDENTITY` of the market",
				}),
		},
		{
			Name:    "submit",
			Aliases: []string{},
			Usage:   "Sign and submit an operation to a running node",
			Action:  cmdSubmit,
			Flags: append(clientFlags,
				&cli.StringFlag{
					Name:     flagData,
					Usage:    "hex encoded instruction `DATA`",
					Required: true,
				},
				&cli.StringSliceFlag{
					Name:  flagAccounts,
					Usage: "account `IDENTITY`, in instruction order",
				},
				&cli.StringSliceFlag{
					Name:  flagSK,
					Usage: "hex encoded BabyJubJub private `KEY` of a signer",
				},
				&cli.Uint64Flag{
					Name:  flagNonce,
					Usage: "nonce of the operation",
					Value: uint64(time.Now().UnixNano()),
				}),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Printf("\nError: %v\n", tracerr.Sprint(err))
		os.Exit(1)
	}
}
