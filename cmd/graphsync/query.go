package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"go.graphsync.dev/core/gateway"
	"go.graphsync.dev/core/graph"
	mbp "go.graphsync.dev/core/mainboilerplate"
	"go.graphsync.dev/core/term"
)

type cmdQuery struct {
	Graph    string `long:"graph" short:"g" default:"default" description:"Graph to query. \"default\" or \"all\" query the union of all graphs"`
	Endpoint string `long:"endpoint" env:"ENDPOINT" default:"http://localhost:3030" description:"Endpoint of a graphsync server"`
	Form     bool   `long:"form" description:"Send the query as a form-encoded \"query\" parameter, rather than a raw body"`
	Format   string `long:"format" short:"o" choice:"table" choice:"json" default:"table" description:"Output format"`
}

func init() {
	commands.AddCommand("", "query", "Query a graphsync server", `
Query POSTs a SPARQL query to the /query/ endpoint of a running graphsync
server, and prints its result bindings. The query is taken from the first
argument or, if the argument is absent or "-", from stdin.

Example:
>    graphsync query --graph bldg1 'SELECT ?s WHERE { ?s a brick:Sensor }'
`, &cmdQuery{})
}

func (cmd *cmdQuery) Execute(args []string) error {
	mbp.InitLog(Config.Log)

	var text string
	if len(args) == 0 || args[0] == "-" {
		var b, err = io.ReadAll(os.Stdin)
		if err != nil {
			return errors.WithMessage(err, "reading query from stdin")
		}
		text = string(b)
	} else {
		text = strings.Join(args, " ")
	}

	var body, err = postQuery(context.Background(), http.DefaultClient, cmd.Endpoint, cmd.Graph, text, cmd.Form)
	if err != nil {
		return err
	}
	if cmd.Format == "json" {
		_, err = os.Stdout.Write(body)
		return err
	}
	results, err := graph.ReadJSON(bytes.NewReader(body))
	if err != nil {
		return errors.WithMessage(err, "decoding results")
	}
	return writeResults(os.Stdout, results)
}

// postQuery POSTs |text| to the gateway of |endpoint| for graph |name|,
// returning the response body of a successful query.
func postQuery(ctx context.Context, client *http.Client, endpoint, name, text string, form bool) ([]byte, error) {
	var target = strings.TrimSuffix(endpoint, "/") + gateway.PathPrefix + url.PathEscape(name)

	var contentType = "application/sparql-query"
	if form {
		contentType = "application/x-www-form-urlencoded"
		text = url.Values{"query": {text}}.Encode()
	}

	var req, err = http.NewRequestWithContext(ctx, "POST", target, strings.NewReader(text))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.WithMessagef(err, "querying %s", target)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.WithMessage(err, "reading response")
	} else if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("query failed (%s): %s", resp.Status, body)
	}
	return body, nil
}

// writeResults writes tabular |results| as a table of their bindings, or a
// boolean result as "true" or "false".
func writeResults(w io.Writer, results *graph.Results) error {
	if !results.IsTabular() {
		var _, err = io.WriteString(w, strconv.FormatBool(*results.Boolean)+"\n")
		return err
	}

	var table = tablewriter.NewWriter(w)
	var header = make([]any, len(results.Vars))
	for i, v := range results.Vars {
		header[i] = v
	}
	table.Header(header...)

	for _, sol := range results.Solutions {
		var row = make([]string, len(results.Vars))
		for i, v := range results.Vars {
			if t, ok := sol[v]; ok {
				row[i] = cell(t)
			}
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	return table.Render()
}

// cell renders a term within a results table. Literals are shown by value,
// which for literals parsed from the table is already their full encoding.
func cell(t term.Term) string {
	if t.Kind == term.Literal {
		return t.Value
	}
	return t.String()
}
