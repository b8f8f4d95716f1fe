package main

import (
	"context"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	mbp "go.graphsync.dev/core/mainboilerplate"
	"go.graphsync.dev/core/source"
)

type cmdInitDB struct {
	Channel   string `long:"channel" env:"CHANNEL" default:"events" description:"Notification channel of the change trigger"`
	TableOnly bool   `long:"table-only" description:"Create only the triple table and its index, without a change trigger"`
}

func init() {
	commands.AddCommand("", "init-db", "Initialize the triple table", `
Create the triple table and its unique (source, s, p, o) index if they don't
exist, as well as a trigger which notifies the channel of each inserted or
updated row. Initialization is idempotent.
`, &cmdInitDB{})
}

func (cmd *cmdInitDB) Execute([]string) error {
	mbp.InitLog(Config.Log)

	var ctx, stop = signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var store = openStore(ctx)
	defer store.Close()

	var ddl = source.Schema(store.Table(), cmd.Channel)
	if cmd.TableOnly {
		ddl = source.TableDDL(store.Table())
	}
	var _, err = store.DB().ExecContext(ctx, ddl)
	mbp.Must(err, "failed to initialize database")

	log.WithFields(log.Fields{
		"table":     store.Table(),
		"channel":   cmd.Channel,
		"tableOnly": cmd.TableOnly,
	}).Info("initialized database")
	return nil
}
