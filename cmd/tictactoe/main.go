package main

import (
    "github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
    Version kong.VersionFlag `short:"v" help:"Show version"`
    Serve   ServeCmd         `cmd:"" default:"withargs" help:"Serve the game over HTTP"`
    Play    PlayCmd          `cmd:"" help:"Apply cell indices to a fresh game and print the result"`
}

func main() {
    var cli CLI
    ctx := kong.Parse(&cli,
        kong.Name("tictactoe"),
        kong.Description("Browser tic-tac-toe for two players on one screen"),
        kong.UsageOnError(),
        kong.ConfigureHelp(kong.HelpOptions{
            Compact: true,
        }),
        kong.Vars{
            "version": version,
        },
    )
    err := ctx.Run()
    ctx.FatalIfErrorf(err)
}
