package server

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/holdemtable/internal/game"
)

// Config is the runtime configuration for the table server. Values come
// from CLI flags and environment variables; stake settings can also come
// from an HCL table file.
type Config struct {
	Addr string

	Table TableConfig

	TTL time.Duration

	AIMode         string
	AISeed         int64
	AIStrategyPath string
	TurnDelay      time.Duration
	HandEndPause   time.Duration

	ReplayEnabled  bool
	ReplayCapacity int

	GameTrace bool
}

// TableConfig defines the stakes and seating of tables this server deals.
type TableConfig struct {
	Name          string `hcl:"name,label"`
	SmallBlind    int    `hcl:"small_blind,optional"`
	BigBlind      int    `hcl:"big_blind,optional"`
	StartingStack int    `hcl:"starting_stack,optional"`
	Seats         int    `hcl:"seats,optional"`
}

type tableFile struct {
	Tables []TableConfig `hcl:"table,block"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Addr:           ":8000",
		Table:          DefaultTableConfig(),
		TTL:            DefaultTTL,
		AIMode:         "random",
		TurnDelay:      800 * time.Millisecond,
		HandEndPause:   5 * time.Second,
		ReplayCapacity: 10000,
		GameTrace:      true,
	}
}

// DefaultTableConfig returns the stock five-seat table.
func DefaultTableConfig() TableConfig {
	return TableConfig{
		Name:          "default",
		SmallBlind:    game.DefaultSmallBlind,
		BigBlind:      game.DefaultBigBlind,
		StartingStack: game.DefaultStartingStack,
		Seats:         len(SeatOrder),
	}
}

// LoadTableConfig reads table stakes from an HCL file. A missing file
// returns the defaults; the first table block wins.
func LoadTableConfig(filename string) (TableConfig, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return DefaultTableConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return TableConfig{}, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var cfg tableFile
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return TableConfig{}, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}
	if len(cfg.Tables) == 0 {
		return DefaultTableConfig(), nil
	}

	table := cfg.Tables[0]
	defaults := DefaultTableConfig()
	if table.SmallBlind == 0 {
		table.SmallBlind = defaults.SmallBlind
	}
	if table.BigBlind == 0 {
		table.BigBlind = defaults.BigBlind
	}
	if table.StartingStack == 0 {
		table.StartingStack = defaults.StartingStack
	}
	if table.Seats == 0 {
		table.Seats = defaults.Seats
	}
	return table, nil
}

// Validate rejects configurations the engine cannot run.
func (t TableConfig) Validate() error {
	if t.SmallBlind <= 0 {
		return fmt.Errorf("table %s: small blind must be positive", t.Name)
	}
	if t.BigBlind <= t.SmallBlind {
		return fmt.Errorf("table %s: big blind must be greater than small blind", t.Name)
	}
	if t.StartingStack < t.BigBlind {
		return fmt.Errorf("table %s: starting stack must cover the big blind", t.Name)
	}
	if t.Seats < game.MinSeats || t.Seats > game.MaxSeats {
		return fmt.Errorf("table %s: seats must be between %d and %d", t.Name, game.MinSeats, game.MaxSeats)
	}
	return nil
}
