package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/log"

	"github.com/lox/holdemtable/internal/ai"
	"github.com/lox/holdemtable/internal/evaluator"
	"github.com/lox/holdemtable/internal/game"
	"github.com/lox/holdemtable/internal/randutil"
	"github.com/lox/holdemtable/internal/server"
	"github.com/lox/holdemtable/internal/training"
)

// SimulateCmd plays hands of self-play without a server, optionally
// capturing decisions for training.
type SimulateCmd struct {
	Hands        int    `default:"100" help:"Number of hands to play"`
	Seats        int    `default:"3" help:"Players at the table (2-5)"`
	SmallBlind   int    `default:"5" help:"Small blind amount"`
	BigBlind     int    `default:"10" help:"Big blind amount"`
	Chips        int    `default:"1000" help:"Starting stack"`
	Mode         string `default:"random" enum:"random,strategy,mccfr,passive" help:"Policy for every seat"`
	StrategyPath string `default:"strategy.json" help:"Strategy table path for strategy mode"`
	Seed         int64  `default:"0" help:"RNG seed (0 for random)"`
	ReplayOut    string `help:"Write captured decisions to this JSONL file"`
	LogLevel     string `short:"l" default:"info" help:"Log level (debug, info, warn, error)"`
}

// stepCap bounds one hand's action loop against a policy/engine livelock.
const stepCap = 200

func (c *SimulateCmd) Run() error {
	logger := log.New(os.Stderr)
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	table := server.TableConfig{
		SmallBlind:    c.SmallBlind,
		BigBlind:      c.BigBlind,
		StartingStack: c.Chips,
		Seats:         c.Seats,
	}
	if err := table.Validate(); err != nil {
		return err
	}
	if c.Hands < 1 {
		return fmt.Errorf("hands must be positive, got %d", c.Hands)
	}

	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger.Info("simulating", "hands", c.Hands, "seats", c.Seats, "mode", c.Mode, "seed", seed)

	policy := ai.ForMode(c.Mode, c.StrategyPath, randutil.New(seed+1), logger)

	var buffer *training.Buffer
	if c.ReplayOut != "" {
		buffer, err = training.NewBuffer(c.Hands*c.Seats*10, randutil.New(seed+2))
		if err != nil {
			return err
		}
	}

	seats := server.SeatOrder[:c.Seats]
	engine, err := game.NewEngine(seats, evaluator.New(),
		game.WithBlinds(table.SmallBlind, table.BigBlind),
		game.WithChips(table.StartingStack),
		game.WithSeed(seed))
	if err != nil {
		return err
	}

	sessionID := fmt.Sprintf("sim-%d", seed)
	played := 0
	if err := engine.StartHand(); err != nil {
		return err
	}
	for {
		if err := playHand(engine, policy, buffer, sessionID, logger); err != nil {
			return err
		}
		played++
		engine.DrainEvents()
		logger.Debug("hand complete",
			"hand", engine.HandID(),
			"winners", engine.Betting.Winners,
			"stacks", engine.Betting.Stacks)

		if played >= c.Hands || len(engine.FundedSeats()) < 2 {
			break
		}
		if err := engine.StartNextHand(); err != nil {
			return err
		}
	}

	printStandings(engine, seats, table.StartingStack, played)

	if buffer != nil {
		if err := buffer.Save(c.ReplayOut); err != nil {
			return err
		}
		logger.Info("replay written", "path", c.ReplayOut, "records", buffer.Len())
	}
	return nil
}

func playHand(engine *game.Engine, policy ai.Policy, buffer *training.Buffer, sessionID string, logger *log.Logger) error {
	for steps := 0; !engine.HandComplete(); steps++ {
		if steps >= stepCap {
			return fmt.Errorf("hand %d exceeded %d steps", engine.HandID(), stepCap)
		}
		actor := engine.Betting.CurrentPlayer
		if actor == "" {
			engine.AdvanceWithoutActor()
			continue
		}
		street := engine.Street()
		action, err := policy.Decide(engine.Observation())
		if err != nil {
			return err
		}
		if err := engine.Step(action, actor); err != nil {
			return fmt.Errorf("%s played %s: %w", actor, action.Kind, err)
		}
		training.Record(buffer, sessionID, actor, action, street, engine)
		logger.Debug("action", "hand", engine.HandID(), "street", street, "seat", actor,
			"action", action.Kind, "amount", action.Amount)
	}
	return nil
}

func printStandings(engine *game.Engine, seats []string, startingStack, played int) {
	fmt.Printf("%s  %d hands\n\n", oddsHeaderStyle.Render("simulated"), played)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n",
		oddsHeaderStyle.Render("seat"),
		oddsHeaderStyle.Render("stack"),
		oddsHeaderStyle.Render("net"))
	for _, seat := range seats {
		stack := engine.Betting.Stacks[seat]
		net := stack - startingStack
		style := oddsWinStyle
		if net < 0 {
			style = oddsPercentStyle
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n",
			oddsHandStyle.Render(seat), stack,
			style.Render(fmt.Sprintf("%+d", net)))
	}
	w.Flush()
}
