// Package zpages wires pulse's operational endpoints onto a router.
package zpages

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pmoves-ai/pulse/internal/build"
	"github.com/pmoves-ai/pulse/internal/healthcheck"
	"github.com/pmoves-ai/pulse/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Configure configures router with pulse's z-page endpoints: /metrics, /healthz and /versionz.
func Configure(router gin.IRouter, registry *prometheus.Registry, client healthcheck.Client, start time.Time) {
	metrics.Configure(router, registry)
	healthcheck.Configure(router, client, start)

	router.GET("/versionz", func(ctx *gin.Context) {
		// Use git_rev to match the health endpoint reporting.
		ctx.JSON(http.StatusOK, gin.H{"git_rev": build.GetGitRevision()})
	})
}
