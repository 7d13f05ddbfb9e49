// Package exporters serves the station's Prometheus metrics.
package exporters

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/photostation/internal/version"
)

var registerBuildInfo sync.Once

// HTTPHandler returns the /metrics handler for every promauto-registered
// metric. The first call also registers photostation_build_info, labelled
// with the running version and commit.
func HTTPHandler() http.Handler {
	registerBuildInfo.Do(func() {
		info := version.Get()
		prometheus.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "photostation",
			Name:      "build_info",
			Help:      "Always 1; labels describe the running build",
			ConstLabels: prometheus.Labels{
				"version":    info.Version,
				"commit":     info.GitCommit,
				"go_version": info.GoVersion,
			},
		}, func() float64 { return 1 }))
	})
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}
