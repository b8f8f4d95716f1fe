package ingest

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"go.graphsync.dev/core/term"
)

var (
	// ErrDecode is the cause of failures to decode a notification payload.
	ErrDecode = errors.New("decoding notification")
	// ErrUnsupportedAction is returned for change events which can't be
	// applied by merging, such as deletions.
	ErrUnsupportedAction = errors.New("unsupported action")
)

// Notification is a raw message received on a notification channel.
type Notification struct {
	Channel string
	Payload string
}

// ChangeEvent is the payload of a change Notification.
type ChangeEvent struct {
	Table  string `json:"table"`
	Action string `json:"action"`
	Data   struct {
		Source string `json:"source"`
		S      string `json:"s"`
		P      string `json:"p"`
		O      string `json:"o"`
	} `json:"data"`
}

// Decoder maps Notifications into the source and Triple they describe.
type Decoder struct {
	// FixedSource, if non-empty, attributes every event to this source.
	// The payload's data.source is then ignored, and may be absent.
	FixedSource string
}

// Decode the source and Triple of Notification |n|. Errors have a cause of
// ErrDecode, ErrUnsupportedAction, or term.ErrMalformed.
func (d Decoder) Decode(n Notification) (string, term.Triple, error) {
	var ev ChangeEvent
	if err := json.Unmarshal([]byte(n.Payload), &ev); err != nil {
		return "", term.Triple{}, errors.WithMessagef(ErrDecode, "%v", err)
	}

	switch strings.ToUpper(ev.Action) {
	case "", "INSERT", "UPDATE":
	default:
		return "", term.Triple{}, errors.WithMessagef(ErrUnsupportedAction, "%q", ev.Action)
	}

	var src = d.FixedSource
	if src == "" {
		if src = ev.Data.Source; src == "" {
			return "", term.Triple{}, errors.WithMessage(ErrDecode, "missing data.source")
		}
	}

	var t, err = term.ParseTriple(ev.Data.S, ev.Data.P, ev.Data.O)
	if err != nil {
		return "", term.Triple{}, err
	}
	return src, t, nil
}
