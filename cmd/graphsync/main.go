// Command graphsync keeps in-memory RDF graphs synchronized with a relational
// triple table, and serves SPARQL queries over them.
package main

import (
	"context"

	"github.com/jessevdk/go-flags"
	mbp "go.graphsync.dev/core/mainboilerplate"
	"go.graphsync.dev/core/source"
)

const iniFilename = "graphsync.ini"

// Config is the top-level configuration shared by graphsync commands.
var Config = new(struct {
	Database    source.Config         `group:"Database" namespace:"db" env-namespace:"MORTAR_DB"`
	Log         mbp.LogConfig         `group:"Logging" namespace:"log" env-namespace:"LOG"`
	Diagnostics mbp.DiagnosticsConfig `group:"Debug" namespace:"debug" env-namespace:"DEBUG"`
})

// commands are registered from init by the files of each command.
var commands = mbp.NewCommandRegistry()

// openStore opens the configured relational store, or panics.
func openStore(ctx context.Context) *source.Store {
	var store, err = source.Open(ctx, Config.Database)
	mbp.Must(err, "failed to open database", "db", Config.Database.Redacted())
	return store
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)
	mbp.Must(commands.AddCommands("", parser.Command), "failed to add commands")

	mbp.AddPrintConfigCmd(parser, iniFilename)
	mbp.MustParseConfig(parser, iniFilename)
}
