package ingest

import (
	"context"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.graphsync.dev/core/metrics"
	"go.graphsync.dev/core/source"
)

// ListenerConfig configures the notification listener.
type ListenerConfig struct {
	Channel      string        `long:"channel" env:"CHANNEL" default:"events" description:"Notification channel to LISTEN on"`
	FixedSource  string        `long:"fixed-source" env:"FIXED_SOURCE" description:"Attribute every notification to this source, ignoring data.source"`
	Buffer       int           `long:"buffer" env:"BUFFER" default:"4096" description:"Maximum number of buffered notifications, beyond which the oldest is dropped"`
	PingInterval time.Duration `long:"ping-interval" env:"PING_INTERVAL" default:"30s" description:"Interval of listener connection health checks"`
	MaxOutage    time.Duration `long:"max-outage" env:"MAX_OUTAGE" default:"5m" description:"Maximum duration of a listener connection outage before failing"`
	MinReconnect time.Duration `long:"min-reconnect" env:"MIN_RECONNECT" default:"1s" description:"Minimum interval between reconnection attempts"`
	MaxReconnect time.Duration `long:"max-reconnect" env:"MAX_RECONNECT" default:"1m" description:"Maximum interval between reconnection attempts"`
}

// pqConn is the portion of *pq.Listener used by PQListener.
type pqConn interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

var _ pqConn = (*pq.Listener)(nil)

// PQListener receives Notifications of a Postgres channel. Serve pumps
// notifications from the connection into a bounded buffer, from which they're
// read via Notifications.
type PQListener struct {
	cfg    ListenerConfig
	conn   pqConn
	out    chan Notification
	events chan pq.ListenerEventType
}

// NewPQListener connects to the database of |connString| and LISTENs on the
// configured channel. It blocks until the subscription is established, or
// |ctx| is cancelled.
func NewPQListener(ctx context.Context, cfg ListenerConfig, connString string) (*PQListener, error) {
	var l = newListener(cfg)
	var pql = pq.NewListener(connString, cfg.MinReconnect, cfg.MaxReconnect, l.onEvent)
	l.conn = pql

	var listenCh = make(chan error, 1)
	go func() { listenCh <- pql.Listen(cfg.Channel) }()

	select {
	case err := <-listenCh:
		if err != nil {
			_ = pql.Close()
			return nil, errors.WithMessagef(source.ErrConnection, "LISTEN %s: %v", cfg.Channel, err)
		}
	case <-ctx.Done():
		_ = pql.Close() // Wakes Listen.
		return nil, ctx.Err()
	}

	log.WithField("channel", cfg.Channel).Info("listening for notifications")
	return l, nil
}

func newListener(cfg ListenerConfig) *PQListener {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 1
	}
	return &PQListener{
		cfg:    cfg,
		out:    make(chan Notification, cfg.Buffer),
		events: make(chan pq.ListenerEventType, 16),
	}
}

// Notifications returns the channel of buffered Notifications.
func (l *PQListener) Notifications() <-chan Notification { return l.out }

// Serve pumps received notifications into the buffer until |ctx| is
// cancelled or the listener is closed. It returns an error if the connection
// remains unhealthy for longer than the configured maximum outage.
func (l *PQListener) Serve(ctx context.Context) error {
	var pingCh <-chan time.Time
	if l.cfg.PingInterval > 0 {
		var ticker = time.NewTicker(l.cfg.PingInterval)
		defer ticker.Stop()
		pingCh = ticker.C
	}
	var outageSince time.Time
	var in = l.conn.NotificationChannel()

	var markOutage = func(err error) {
		if outageSince.IsZero() {
			outageSince = time.Now()
			log.WithField("err", err).Warn("notification listener connection is unhealthy")
		}
	}
	var markHealthy = func() {
		if !outageSince.IsZero() {
			log.WithField("outage", time.Since(outageSince)).Info("notification listener connection recovered")
			outageSince = time.Time{}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case n, ok := <-in:
			if !ok {
				return nil // Closed.
			} else if n == nil {
				// pq signals re-establishment of the connection with a nil
				// notification. Notifications sent in the interim are lost.
				metrics.ListenerReconnectsTotal.Inc()
				log.WithField("channel", l.cfg.Channel).
					Warn("notification listener reconnected (notifications may have been lost)")
				markHealthy()
				continue
			}
			l.deliver(Notification{Channel: n.Channel, Payload: n.Extra})

		case ev := <-l.events:
			switch ev {
			case pq.ListenerEventDisconnected, pq.ListenerEventConnectionAttemptFailed:
				markOutage(errors.New("disconnected"))
			case pq.ListenerEventConnected, pq.ListenerEventReconnected:
				markHealthy()
			}

		case <-pingCh:
			if err := l.conn.Ping(); err != nil {
				markOutage(err)
			} else {
				markHealthy()
			}
		}

		if l.cfg.MaxOutage > 0 && !outageSince.IsZero() && time.Since(outageSince) > l.cfg.MaxOutage {
			return errors.WithMessagef(source.ErrConnection,
				"notification listener unhealthy for %s", time.Since(outageSince).Round(time.Second))
		}
	}
}

// Close the listener connection.
func (l *PQListener) Close() error { return l.conn.Close() }

// deliver |n| to the buffer. If the buffer is full, the oldest buffered
// Notification is dropped to make room.
func (l *PQListener) deliver(n Notification) {
	for {
		select {
		case l.out <- n:
			return
		default:
		}

		select {
		case dropped := <-l.out:
			metrics.NotificationsDroppedTotal.Inc()
			log.WithFields(log.Fields{
				"channel": dropped.Channel,
				"buffer":  cap(l.out),
			}).Warn("notification buffer is full (dropped oldest notification)")
		default:
		}
	}
}

// onEvent is called by pq from its own goroutine.
func (l *PQListener) onEvent(ev pq.ListenerEventType, err error) {
	if err != nil {
		log.WithFields(log.Fields{"event": ev, "err": err}).Debug("notification listener event")
	}
	select {
	case l.events <- ev:
	default:
		// Dropped. Health is re-established by the next ping.
	}
}
