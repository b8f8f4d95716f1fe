package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	mbp "go.graphsync.dev/core/mainboilerplate"
)

type cmdLoad struct {
	Source string `long:"source" required:"true" description:"Source (graph) of the loaded triples"`
	Format string `long:"format" choice:"turtle" choice:"ntriples" choice:"rdfxml" description:"RDF format of the files. Inferred from file extensions if not set"`
}

func init() {
	commands.AddCommand("", "load", "Load RDF files into the triple table", `
Load decodes triples of each RDF file argument and inserts them as rows of
the given --source. Triples already present are skipped. Each file is
inserted within its own transaction.

A running serve command picks up the inserted rows through its change
trigger, if one was installed by init-db.

Example:
>    graphsync load --source bldg1 building.ttl brick.ttl
`, &cmdLoad{})
}

func (cmd *cmdLoad) Execute(args []string) error {
	mbp.InitLog(Config.Log)

	if len(args) == 0 {
		return errors.New("expected at least one file to load")
	}

	var ctx, stop = signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var store = openStore(ctx)
	defer store.Close()

	for _, path := range args {
		var format, err = rdfFormat(cmd.Format, path)
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		triples, err := decodeRDF(f, format)
		_ = f.Close()

		if err != nil {
			return errors.WithMessage(err, path)
		}
		inserted, err := store.Insert(ctx, cmd.Source, triples)
		if err != nil {
			return errors.WithMessagef(err, "inserting %s", path)
		}

		log.WithFields(log.Fields{
			"path":     path,
			"source":   cmd.Source,
			"decoded":  humanize.Comma(int64(len(triples))),
			"inserted": humanize.Comma(inserted),
		}).Info("loaded file")
	}
	return nil
}
