// Package mainboilerplate contains shared boilerplate for graphsync programs:
// configuration parsing, logging, diagnostics and process identity. Each
// piece is narrowly scoped, so callers needn't buy in to all of it.
package mainboilerplate

import (
	log "github.com/sirupsen/logrus"
)

// Version and BuildDate of the program, populated at link time with
//
//	-ldflags "-X go.graphsync.dev/core/mainboilerplate.Version=..."
var (
	Version   = "development"
	BuildDate = "unknown"
)

// Must panics if |err| is non-nil, supplying |msg| and |extra| as
// formatter and fields of the generated panic.
func Must(err error, msg string, extra ...interface{}) {
	if err == nil {
		return
	}
	var f = log.Fields{"err": err}
	for i := 0; i+1 < len(extra); i += 2 {
		f[extra[i].(string)] = extra[i+1]
	}
	log.WithFields(f).Panic(msg)
}
