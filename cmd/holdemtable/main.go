package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version  kong.VersionFlag `short:"v" help:"Show version"`
	Serve    ServeCmd         `cmd:"" default:"withargs" help:"Run the table server"`
	Simulate SimulateCmd      `cmd:"" help:"Play self-play hands offline"`
	Odds     OddsCmd          `cmd:"" help:"Estimate hand strength and win odds"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("holdemtable"),
		kong.Description("Multi-seat Texas Hold'em table server"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": version},
	)
	ctx.FatalIfErrorf(ctx.Run())
}
