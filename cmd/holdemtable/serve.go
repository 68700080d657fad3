package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/lox/holdemtable/internal/ai"
	"github.com/lox/holdemtable/internal/evaluator"
	"github.com/lox/holdemtable/internal/game"
	"github.com/lox/holdemtable/internal/randutil"
	"github.com/lox/holdemtable/internal/server"
	"github.com/lox/holdemtable/internal/training"
)

// ServeCmd runs the websocket table server.
type ServeCmd struct {
	Config   string `short:"c" default:"holdemtable.hcl" help:"Path to HCL table configuration file"`
	Addr     string `short:"a" default:":8000" help:"Address to bind to"`
	LogLevel string `short:"l" default:"info" help:"Log level (debug, info, warn, error)"`

	AIMode         string `env:"AI_MODE" default:"random" enum:"random,strategy,mccfr,passive" help:"Policy for machine seats"`
	AISeed         int64  `env:"AI_SEED" default:"0" help:"Seed for the policy RNG (0 for random)"`
	AIStrategyPath string `env:"AI_STRATEGY_PATH" default:"strategy.json" help:"Strategy table path for strategy mode"`
	AITurnDelayMS  int    `env:"AI_TURN_DELAY_MS" default:"800" help:"Pause between machine moves"`
	HandEndPauseMS int    `env:"HAND_END_PAUSE_MS" default:"5000" help:"Pause before dealing the next hand"`

	ReplayEnabled  bool `env:"REPLAY_ENABLED" default:"false" help:"Capture decisions into the replay buffer"`
	ReplayCapacity int  `env:"REPLAY_CAPACITY" default:"10000" help:"Replay buffer size"`

	GameTrace bool `env:"GAME_TRACE" default:"true" negatable:"" help:"Trace game flow at debug level"`
	Annotate  bool `default:"true" negatable:"" help:"Estimate hand strength for client display"`
}

func (c *ServeCmd) Run() error {
	logger := log.New(os.Stderr)
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)
	if c.GameTrace && level > log.DebugLevel {
		// Trace lines log at debug; honor the trace switch regardless.
		logger.SetLevel(log.DebugLevel)
	}

	table, err := server.LoadTableConfig(c.Config)
	if err != nil {
		return err
	}
	if err := table.Validate(); err != nil {
		return err
	}

	cfg := server.DefaultConfig()
	cfg.Addr = c.Addr
	cfg.Table = table
	cfg.AIMode = c.AIMode
	cfg.AISeed = c.AISeed
	cfg.AIStrategyPath = c.AIStrategyPath
	cfg.TurnDelay = time.Duration(c.AITurnDelayMS) * time.Millisecond
	cfg.HandEndPause = time.Duration(c.HandEndPauseMS) * time.Millisecond
	cfg.ReplayEnabled = c.ReplayEnabled
	cfg.ReplayCapacity = c.ReplayCapacity
	cfg.GameTrace = c.GameTrace

	eval := evaluator.New()
	aiSeed := cfg.AISeed
	if aiSeed == 0 {
		aiSeed = time.Now().UnixNano()
	}
	policy := ai.ForMode(cfg.AIMode, cfg.AIStrategyPath, randutil.New(aiSeed), logger)

	var buffer *training.Buffer
	if cfg.ReplayEnabled {
		buffer, err = training.NewBuffer(cfg.ReplayCapacity, randutil.New(aiSeed+1))
		if err != nil {
			return err
		}
		logger.Info("replay capture enabled", "capacity", cfg.ReplayCapacity)
	}

	seats := server.SeatOrder[:cfg.Table.Seats]
	factory := func() (*game.Engine, error) {
		opts := []game.Option{
			game.WithBlinds(cfg.Table.SmallBlind, cfg.Table.BigBlind),
			game.WithChips(cfg.Table.StartingStack),
		}
		if c.Annotate {
			estimator := evaluator.NewEstimator(eval, randutil.New(time.Now().UnixNano()))
			opts = append(opts, game.WithAnnotator(estimator))
		}
		return game.NewEngine(seats, eval, opts...)
	}

	store := server.NewStore(factory)
	orchestrator := server.NewOrchestrator(store, policy, buffer, cfg, logger)
	srv := server.NewServer(cfg.Addr, store, orchestrator, logger)

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		return nil
	})
	return g.Wait()
}
