package main

import (
	"context"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.graphsync.dev/core/gateway"
	"go.graphsync.dev/core/graph/memstore"
	"go.graphsync.dev/core/ingest"
	mbp "go.graphsync.dev/core/mainboilerplate"
	"go.graphsync.dev/core/metrics"
	"go.graphsync.dev/core/server"
	"go.graphsync.dev/core/task"
)

type cmdServe struct {
	Process mbp.ProcessConfig     `group:"Process" namespace:"process" env-namespace:"PROCESS"`
	Listen  ingest.ListenerConfig `group:"Listen" namespace:"listen" env-namespace:"LISTEN"`
	Flush   struct {
		Interval time.Duration `long:"interval" env:"INTERVAL" default:"10s" description:"Interval between merges of pending notifications"`
	} `group:"Flush" namespace:"flush" env-namespace:"FLUSH"`
	HTTP struct {
		Interface    string        `long:"interface" env:"INTERFACE" description:"Network interface to bind. All interfaces are bound if not set"`
		Port         uint16        `long:"port" env:"PORT" default:"3030" description:"Service port for HTTP and gRPC requests"`
		MaxConns     int           `long:"max-conns" env:"MAX_CONNS" default:"0" description:"Maximum number of concurrent connections, or zero for no limit"`
		MaxBody      int64         `long:"max-body" env:"MAX_BODY" default:"1024" description:"Maximum size of a query request body"`
		MaxQualify   int64         `long:"max-qualify-body" env:"MAX_QUALIFY_BODY" default:"65536" description:"Maximum size of a qualify request body"`
		QueryTimeout time.Duration `long:"query-timeout" env:"QUERY_TIMEOUT" default:"30s" description:"Maximum duration of a query, or zero for no limit"`
	} `group:"HTTP" namespace:"http" env-namespace:"HTTP"`
	Engine struct {
		QueryCache int `long:"query-cache" env:"QUERY_CACHE" default:"256" description:"Number of parsed queries to cache, or zero to disable caching"`
	} `group:"Engine" namespace:"engine" env-namespace:"ENGINE"`
	Query struct {
		Prefixes []string `long:"prefix" env:"PREFIX" env-delim:"," description:"Additional query prologue prefix, as name=iri. May be repeated"`
	} `group:"Query" namespace:"query" env-namespace:"QUERY"`
}

func init() {
	commands.AddCommand("", "serve", "Serve synchronized graphs", `
Serve bootstraps graphs from the relational triple table, and then keeps them
synchronized with rows inserted or updated thereafter, as announced by change
notifications of the listen channel. Graphs are queried with SPARQL by POSTing
to /query/{graphname}, where "default" or "all" query the union of all graphs,
or via /sparql?site={graphname}&query={query}. POSTing a JSON list of queries
to /qualify returns the number of results of each query within each graph.
Queries are refused with 503 until bootstrap completes.

Serve runs until signaled to exit (via SIGTERM or SIGINT), at which point
already-received notifications are merged before exiting.
`, &cmdServe{})
}

func (cmd *cmdServe) Execute([]string) error {
	defer mbp.InitDiagnosticsAndRecover(Config.Diagnostics, http.DefaultServeMux, prometheus.DefaultGatherer)()
	mbp.InitLog(Config.Log)

	Config.Database.ApplicationName = cmd.Process.ProcessID()
	log.WithFields(log.Fields{
		"id":      Config.Database.ApplicationName,
		"db":      Config.Database.Redacted(),
		"version": mbp.Version,
	}).Info("starting graphsync")
	prometheus.MustRegister(metrics.GraphsyncCollectors()...)

	prefixes, err := gateway.ParsePrefixes(cmd.Query.Prefixes)
	mbp.Must(err, "invalid query prefix")

	var signalCtx, stop = signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	var tasks = task.NewGroup(signalCtx)

	var store = openStore(tasks.Context())
	defer store.Close()

	// LISTEN before bootstrap, so that no row committed after the bootstrap
	// snapshot is missed.
	listener, err := ingest.NewPQListener(tasks.Context(), cmd.Listen, Config.Database.ConnString())
	mbp.Must(err, "failed to listen for notifications")

	srv, err := server.New(cmd.HTTP.Interface, cmd.HTTP.Port, cmd.HTTP.MaxConns)
	mbp.Must(err, "building Server instance")

	var engine = memstore.New(cmd.Engine.QueryCache)
	var agg = ingest.NewAggregator(listener.Notifications(),
		ingest.Decoder{FixedSource: cmd.Listen.FixedSource}, engine, cmd.Flush.Interval)
	var status = &serveStatus{engine: engine, agg: agg}

	gateway.NewGateway(engine, gateway.Config{
		MaxBody:        cmd.HTTP.MaxBody,
		MaxQualifyBody: cmd.HTTP.MaxQualify,
		QueryTimeout:   cmd.HTTP.QueryTimeout,
		Prefixes:       prefixes,
		Ready:          status.Ready,
		Graphs:         engine,
	}).Register(srv.HTTPMux)
	srv.HTTPMux.Handle("/debug/graphsync", gateway.StatusHandler(status))
	srv.QueueTasks(tasks)

	tasks.Queue("listener.Serve", func() error {
		return listener.Serve(tasks.Context())
	})
	tasks.Queue("aggregator.Run", func() error {
		// The listener is closed only after the aggregator's final flush.
		defer listener.Close()

		var _, err = ingest.Bootstrap(tasks.Context(), store, engine, Config.Database.PoolSize)
		if err != nil {
			return errors.WithMessage(err, "bootstrap")
		}
		status.ready.Store(true)
		srv.SetServing(true)

		log.WithField("endpoint", srv.Endpoint()).Info("serving graphs")
		return agg.Run(tasks.Context())
	})
	tasks.Queue("watch signals", func() error {
		<-tasks.Context().Done()
		if signalCtx.Err() != nil {
			log.Info("caught signal; stopping")
		}
		return nil
	})

	tasks.GoRun()
	mbp.Must(tasks.Wait(), "graphsync task failed")
	log.Info("goodbye")

	return nil
}

// serveStatus implements gateway.StatusSource.
type serveStatus struct {
	engine *memstore.Store
	agg    *ingest.Aggregator
	ready  atomic.Bool
}

func (s *serveStatus) Ready() bool            { return s.ready.Load() }
func (s *serveStatus) Graphs() map[string]int { return s.engine.Stats() }

func (s *serveStatus) Pending(ctx context.Context) (ingest.PendingStats, error) {
	if !s.Ready() {
		return ingest.PendingStats{}, errors.New("bootstrap is in progress")
	}
	return s.agg.Pending(ctx)
}
