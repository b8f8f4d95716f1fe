package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	mbp "go.graphsync.dev/core/mainboilerplate"
	"go.graphsync.dev/core/source"
	"gopkg.in/yaml.v2"
)

type cmdSources struct {
	Format string `long:"format" short:"o" choice:"table" choice:"json" choice:"yaml" default:"table" description:"Output format"`
}

func init() {
	commands.AddCommand("", "sources", "List sources of the triple table", `
List each distinct source of the triple table, with its number of rows.

Results can be output in a variety of --format options:
table: Prints as a table.
json:  Prints sources encoded as JSON, one per line.
yaml:  Prints a YAML sequence of sources.
`, &cmdSources{})
}

func (cmd *cmdSources) Execute([]string) error {
	mbp.InitLog(Config.Log)

	var ctx, stop = signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var store = openStore(ctx)
	defer store.Close()

	var counts, err = store.Counts(ctx)
	mbp.Must(err, "failed to count sources")

	return writeSources(os.Stdout, cmd.Format, counts)
}

func writeSources(w io.Writer, format string, counts []source.SourceCount) error {
	switch format {
	case "json":
		var enc = json.NewEncoder(w)
		for _, c := range counts {
			if err := enc.Encode(c); err != nil {
				return err
			}
		}
		return nil
	case "yaml":
		var b, err = yaml.Marshal(counts)
		if err == nil {
			_, err = w.Write(b)
		}
		return err
	default:
		var table = tablewriter.NewWriter(w)
		table.Header("Source", "Triples")

		for _, c := range counts {
			if err := table.Append([]string{c.Source, humanize.Comma(c.Count)}); err != nil {
				return err
			}
		}
		return table.Render()
	}
}
