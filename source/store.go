// Package source reads and writes the relational table of triples from which
// graphs are synchronized. Each row of the table is a (source, s, p, o) tuple,
// where s, p, and o are terms in their textual encoding.
package source

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.graphsync.dev/core/term"
)

var (
	// ErrConnection is the cause of failures to reach or query the database.
	ErrConnection = errors.New("database connection failed")
	// ErrPoolExhausted is returned when no pooled connection became
	// available within the acquisition timeout.
	ErrPoolExhausted = errors.New("connection pool exhausted")
)

// RowError describes a row having a malformed term. The row is skipped.
type RowError struct {
	Source string
	// Position of the malformed term: "subject", "predicate", or "object".
	Position string
	// Text of the malformed term.
	Text string
	Err  error
}

func (e RowError) Error() string {
	return "source " + e.Source + ": " + e.Position + ": " + e.Err.Error()
}

// SourceCount is the number of rows of a source.
type SourceCount struct {
	Source string `json:"source" yaml:"source"`
	Count  int64  `json:"count" yaml:"count"`
}

// Store accesses the triple table of a database.
type Store struct {
	db             *sql.DB
	table          string // Quoted.
	rawTable       string
	acquireTimeout time.Duration
}

// NewStore returns a Store of |table| within |db|. Each read of Triples waits
// up to |acquireTimeout| for a pooled connection, where zero waits indefinitely.
func NewStore(db *sql.DB, table string, acquireTimeout time.Duration) *Store {
	return &Store{
		db:             db,
		table:          pq.QuoteIdentifier(table),
		rawTable:       table,
		acquireTimeout: acquireTimeout,
	}
}

// Open a Postgres database per |cfg|, blocking until it responds to a ping
// or |ctx| is cancelled.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var db, err = sql.Open("postgres", cfg.ConnString())
	if err != nil {
		return nil, errors.WithMessage(err, "sql.Open")
	}
	db.SetMaxOpenConns(cfg.PoolSize)
	db.SetMaxIdleConns(cfg.PoolSize)
	db.SetConnMaxLifetime(cfg.MaxLifetime)

	for attempt := 0; ; attempt++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		log.WithFields(log.Fields{
			"err":     err,
			"host":    cfg.Host,
			"port":    cfg.Port,
			"attempt": attempt,
		}).Warn("database is not ready (will retry)")

		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(pingRetryInterval):
		}
	}
	log.WithFields(log.Fields{
		"host":     cfg.Host,
		"database": cfg.Database,
		"table":    cfg.Table,
		"poolSize": cfg.PoolSize,
	}).Info("connected to database")

	return NewStore(db, cfg.Table, cfg.AcquireTimeout), nil
}

// DB returns the database of the Store.
func (s *Store) DB() *sql.DB { return s.db }

// Table returns the unquoted table name of the Store.
func (s *Store) Table() string { return s.rawTable }

// Close the database.
func (s *Store) Close() error { return s.db.Close() }

// Sources returns the distinct sources of the table, in sorted order.
func (s *Store) Sources(ctx context.Context) ([]string, error) {
	var rows, err = s.db.QueryContext(ctx, "SELECT DISTINCT source FROM "+s.table+" ORDER BY source")
	if err != nil {
		return nil, connectionErr(ctx, err, "querying sources")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var src string
		if err = rows.Scan(&src); err != nil {
			return nil, connectionErr(ctx, err, "scanning source")
		}
		out = append(out, src)
	}
	if err = rows.Err(); err != nil {
		return nil, connectionErr(ctx, err, "reading sources")
	}
	return out, nil
}

// Triples returns all triples of |src| in table order, reading through a
// pooled connection held for the duration of the call. A row having a
// malformed term is skipped and passed to |onMalformed|, if non-nil.
func (s *Store) Triples(ctx context.Context, src string, onMalformed func(RowError)) ([]term.Triple, error) {
	var conn, err = s.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, "SELECT s, p, o FROM "+s.table+" WHERE source = $1", src)
	if err != nil {
		return nil, connectionErr(ctx, err, "querying triples")
	}
	defer rows.Close()

	var out []term.Triple
	var texts [3]string

next:
	for rows.Next() {
		if err = rows.Scan(&texts[0], &texts[1], &texts[2]); err != nil {
			return nil, connectionErr(ctx, err, "scanning triple")
		}

		var terms [3]term.Term
		for i := range texts {
			if terms[i], err = term.Parse(texts[i]); err != nil {
				if onMalformed != nil {
					onMalformed(RowError{Source: src, Position: positions[i], Text: texts[i], Err: err})
				}
				continue next
			}
		}
		out = append(out, term.Triple{Subject: terms[0], Predicate: terms[1], Object: terms[2]})
	}
	if err = rows.Err(); err != nil {
		return nil, connectionErr(ctx, err, "reading triples")
	}
	return out, nil
}

// Insert |triples| of |src| within a single transaction, returning the number
// of rows inserted. Triples already present in the table are ignored.
func (s *Store) Insert(ctx context.Context, src string, triples []term.Triple) (int64, error) {
	var txn, err = s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, connectionErr(ctx, err, "beginning transaction")
	}
	defer func() {
		if txn != nil {
			_ = txn.Rollback()
		}
	}()

	stmt, err := txn.PrepareContext(ctx, "INSERT INTO "+s.table+
		" (source, s, p, o) VALUES ($1, $2, $3, $4) ON CONFLICT DO NOTHING")
	if err != nil {
		return 0, errors.WithMessage(err, "preparing insert")
	}
	defer stmt.Close()

	var total int64
	for _, t := range triples {
		var res, err = stmt.ExecContext(ctx, src, t.Subject.String(), t.Predicate.String(), t.Object.String())
		if err != nil {
			return 0, errors.WithMessagef(err, "inserting %s", t)
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	if err = txn.Commit(); err != nil {
		return 0, connectionErr(ctx, err, "committing")
	}
	txn = nil

	return total, nil
}

// Counts returns the number of rows of each source, in source order.
func (s *Store) Counts(ctx context.Context) ([]SourceCount, error) {
	var rows, err = s.db.QueryContext(ctx,
		"SELECT source, COUNT(*) FROM "+s.table+" GROUP BY source ORDER BY source")
	if err != nil {
		return nil, connectionErr(ctx, err, "querying counts")
	}
	defer rows.Close()

	var out []SourceCount
	for rows.Next() {
		var sc SourceCount
		if err = rows.Scan(&sc.Source, &sc.Count); err != nil {
			return nil, connectionErr(ctx, err, "scanning count")
		}
		out = append(out, sc)
	}
	return out, connectionErr(ctx, rows.Err(), "reading counts")
}

// acquire a dedicated connection from the pool.
func (s *Store) acquire(ctx context.Context) (*sql.Conn, error) {
	var acquireCtx, cancel = ctx, context.CancelFunc(func() {})
	if s.acquireTimeout != 0 {
		acquireCtx, cancel = context.WithTimeout(ctx, s.acquireTimeout)
	}
	defer cancel()

	var conn, err = s.db.Conn(acquireCtx)
	if err == nil {
		return conn, nil
	} else if ctx.Err() == nil && acquireCtx.Err() == context.DeadlineExceeded {
		return nil, errors.WithMessagef(ErrPoolExhausted, "waited %s", s.acquireTimeout)
	}
	return nil, connectionErr(ctx, err, "acquiring connection")
}

// connectionErr classifies a non-nil |err| as an ErrConnection, unless it
// resulted from cancellation of |ctx|.
func connectionErr(ctx context.Context, err error, op string) error {
	if err == nil {
		return nil
	} else if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.WithMessagef(ErrConnection, "%s: %v", op, err)
}

var positions = [3]string{"subject", "predicate", "object"}

const pingRetryInterval = 5 * time.Second
