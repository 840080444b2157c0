package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hermeznetwork/forge-node/log"
	"github.com/hermeznetwork/tracerr"
	"github.com/joho/godotenv"
	"gopkg.in/go-playground/validator.v9"
)

// Duration is a wrapper type that parses time duration from text.
type Duration struct {
	time.Duration `validate:"required"`
}

// UnmarshalText unmarshalls time duration from text.
func (d *Duration) UnmarshalText(data []byte) error {
	duration, err := time.ParseDuration(string(data))
	if err != nil {
		return tracerr.Wrap(err)
	}
	d.Duration = duration
	return nil
}

// MarshalText marshalls time duration to text.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// PostgreSQL is the configuration of a PostgreSQL connection
type PostgreSQL struct {
	Port     int    `validate:"required"`
	Host     string `validate:"required"`
	User     string `validate:"required"`
	Password string `validate:"required"`
	Name     string `validate:"required"`
}

// NodeDebug specifies debug configuration parameters
type NodeDebug struct {
	// APIAddress is the address where the debug API (metrics) will listen.
	// If empty, the debug API is not started.
	APIAddress string
	// MeddlerLogs enables meddler debug mode, where unused columns and struct
	// fields will be logged
	MeddlerLogs bool
	// GinDebugMode sets Gin-Gonic (the web framework) to run in
	// debug mode
	GinDebugMode bool
}

// LogConf is the configuration of the logger
type LogConf struct {
	Level string `validate:"required,oneof=debug info warn error"`
	// ErrorsPath is the file where errors are also written. Empty
	// disables it.
	ErrorsPath string
}

// APIConfigParameters specify the API configuration
type APIConfigParameters struct {
	// Address where the API will listen. If empty, the API is not started.
	Address      string
	ReadTimeout  Duration `validate:"-"`
	WriteTimeout Duration `validate:"-"`
	// MaxSQLConnections is the maximum number of HistoryDB connections used
	// by the API at the same time
	MaxSQLConnections    int      `validate:"required,gte=1"`
	SQLConnectionTimeout Duration `validate:"required"`
	// RequestsPerSecond limits the operations submitted per second, 0
	// disables the limit
	RequestsPerSecond float64 `validate:"gte=0"`
	Burst             int     `validate:"gte=0"`
	// AllowOrigins of the CORS middleware
	AllowOrigins []string
}

// Node is the configuration of a forge node
type Node struct {
	Log     LogConf `validate:"required"`
	StateDB struct {
		// Type is "pebble" or "memory"
		Type string `validate:"required,oneof=pebble memory"`
		// Path where the StateDB and its checkpoints are stored
		Path string
		// Keep is the number of checkpoints to keep
		Keep int `validate:"gte=1"`
	} `validate:"required"`
	HistoryDB struct {
		// Driver is "postgres" or "sqlite3". If empty, the history of
		// operations is not recorded.
		Driver string `validate:"omitempty,oneof=postgres sqlite3"`
		// SQLitePath is the file of the SQLite DB
		SQLitePath string
		PostgreSQL PostgreSQL `validate:"-"`
	}
	Ledger struct {
		// GenesisPath is a TOML file with the mints, token accounts and
		// native balances created on the first start
		GenesisPath string
		// MinimumBalance is the native balance that a payer must keep
		// after an operation
		MinimumBalance uint64
	}
	Clock struct {
		// Genesis is the unix time of slot 0
		Genesis int64 `validate:"gte=0"`
		// SlotDuration is the duration of a slot
		SlotDuration Duration `validate:"required"`
	} `validate:"required"`
	Engine struct {
		// CheckpointInterval is the number of accepted operations
		// between StateDB checkpoints, 0 disables them
		CheckpointInterval uint64
	}
	API   APIConfigParameters `validate:"required"`
	Debug NodeDebug
}

// loadEnv loads the .env file placed next to the configuration file, if
// any
func loadEnv(path string) error {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		return nil
	}
	return tracerr.Wrap(godotenv.Load(envPath))
}

// Load loads a TOML configuration file on top of defaults. ${VAR}
// references in the file are expanded with the environment, after loading
// the .env file next to it.
func Load(path string, defaults string, cfg interface{}) error {
	if _, err := toml.Decode(defaults, cfg); err != nil {
		return tracerr.Wrap(fmt.Errorf("error loading default values: %w", err))
	}
	if err := loadEnv(path); err != nil {
		return tracerr.Wrap(err)
	}
	bs, err := ioutil.ReadFile(path) //nolint:gosec
	if err != nil {
		return tracerr.Wrap(err)
	}
	if _, err := toml.Decode(os.ExpandEnv(string(bs)), cfg); err != nil {
		return tracerr.Wrap(err)
	}
	return nil
}

// LoadNode loads the Node configuration from path.
func LoadNode(path string) (*Node, error) {
	var cfg Node
	if err := Load(path, DefaultValues, &cfg); err != nil {
		return nil, tracerr.Wrap(fmt.Errorf("error loading node configuration file: %w", err))
	}
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return nil, tracerr.Wrap(fmt.Errorf("error validating configuration file: %w", err))
	}
	if cfg.StateDB.Type == "pebble" && cfg.StateDB.Path == "" {
		return nil, tracerr.Wrap(fmt.Errorf("error validating configuration file: StateDB.Path is required"))
	}
	switch cfg.HistoryDB.Driver {
	case "sqlite3":
		if cfg.HistoryDB.SQLitePath == "" {
			return nil, tracerr.Wrap(fmt.Errorf(
				"error validating configuration file: HistoryDB.SQLitePath is required"))
		}
	case "postgres":
		if err := validate.Struct(cfg.HistoryDB.PostgreSQL); err != nil {
			return nil, tracerr.Wrap(fmt.Errorf("error validating configuration file: %w", err))
		}
	}
	log.Debugf("Loaded Configuration: %+v", cfg)
	return &cfg, nil
}
