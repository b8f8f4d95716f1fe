package mainboilerplate

import (
	_ "expvar" // Import for /debug/vars
	"fmt"
	"net/http"
	_ "net/http/pprof" // Import for /debug/pprof
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DiagnosticsConfig configures pull-based application metrics, debugging and diagnostics.
type DiagnosticsConfig struct {
	// Nothing to see here (yet).
}

// InitDiagnosticsAndRecover serves a liveness check at /debug/ready, and
// Prometheus metrics of |gatherer| at /debug/metrics, from |mux|. Packages
// "net/http/pprof" and "expvar" serve /debug/pprof/ and /debug/vars from
// http.DefaultServeMux.
//
// It returns a closure which should be deferred, which recovers a panic and
// attempts to log a K8s termination message before re-panicking.
func InitDiagnosticsAndRecover(_ DiagnosticsConfig, mux *http.ServeMux, gatherer prometheus.Gatherer) func() {
	mux.HandleFunc("/debug/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/debug/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	return func() {
		if r := recover(); r != nil {
			// Make a best effort attempt to write a termination message.
			// Bug: https://github.com/kubernetes/kubernetes/issues/31839
			if f, err := os.OpenFile(k8sTerminationLog, os.O_WRONLY, 0777); err == nil {
				fmt.Fprintf(f, "%+v", r)
				f.Close()
			}
			panic(r)
		}
	}
}

const (
	// k8sTerminationLog is the location to write a termination message for
	// Kubernetes to retrieve.
	//
	// Link: https://kubernetes.io/docs/tasks/debug-application-cluster/determine-reason-pod-failure/#setting-the-termination-log-file
	k8sTerminationLog = "/dev/termination-log"
)
