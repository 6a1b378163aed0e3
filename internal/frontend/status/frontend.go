/*
Package status is the REST frontend serving aggregated platform health.
*/
package status

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
	"github.com/pmoves-ai/pulse/internal/catalog"
	"github.com/pmoves-ai/pulse/internal/http/httperror"
	"github.com/pmoves-ai/pulse/internal/monitor"
	"github.com/pmoves-ai/pulse/internal/probe"
	"github.com/pmoves-ai/pulse/internal/stats"
)

// SnapshotProvider supplies the latest sweep snapshot. The monitor satisfies this.
type SnapshotProvider interface {
	Latest() monitor.Snapshot
}

// Frontend configures routers with the aggregated health API.
type Frontend struct {
	log      logr.Logger
	catalogs *catalog.Store
	snapshot SnapshotProvider
}

// New creates a new Frontend reading the catalog from catalogs and results from snapshot.
func New(logger logr.Logger, catalogs *catalog.Store, snapshot SnapshotProvider) Frontend {
	return Frontend{
		log:      logger,
		catalogs: catalogs,
		snapshot: snapshot,
	}
}

// Configure configures router with the v0 status API.
func (f Frontend) Configure(router *gin.Engine) {
	v0 := router.Group("/v0")

	v0.GET("/services", f.listServices)
	v0.GET("/services/:name", f.getService)
	v0.GET("/tiers", f.listTiers)
	v0.GET("/tiers/:tier", f.getTier)
	v0.GET("/health", f.getHealth)
}

func (f Frontend) listServices(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"services": f.view(),
	})
}

func (f Frontend) getService(ctx *gin.Context) {
	name := ctx.Param("name")

	svc, err := f.catalogs.Get().Lookup(name)
	if err != nil {
		if errors.Is(err, catalog.ErrServiceNotFound) {
			abort(ctx, httperror.Newf(http.StatusNotFound, "no service named %q", name))
			return
		}
		abort(ctx, httperror.Wrap(http.StatusInternalServerError, err))
		return
	}

	result, ok := f.snapshot.Latest().Result(svc.Name)
	if !ok {
		// In the catalog but not yet swept, typically right after a hot reload.
		result = unprobed(svc)
	}

	ctx.JSON(http.StatusOK, result)
}

func (f Frontend) listTiers(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{
		"tiers": stats.Compute(f.view()),
	})
}

func (f Frontend) getTier(ctx *gin.Context) {
	tier := ctx.Param("tier")

	if f.catalogs.Get().Tier(tier) == nil {
		abort(ctx, httperror.Newf(http.StatusNotFound, "no tier named %q", tier))
		return
	}

	for _, ts := range stats.Compute(f.view()) {
		if ts.Tier == tier {
			ctx.JSON(http.StatusOK, ts)
			return
		}
	}

	// The catalog has the tier but the view doesn't, which can't happen: the view spans the
	// catalog. Fail loudly if it ever does.
	f.log.Info("Tier present in catalog but missing from view", "tier", tier)
	abort(ctx, httperror.Newf(http.StatusInternalServerError, "tier %q missing from view", tier))
}

func (f Frontend) getHealth(ctx *gin.Context) {
	// Generated at request time; the snapshot's TakenAt is the zero time until the first sweep
	// completes.
	rollup := stats.NewRollup(f.view(), time.Now())

	status := http.StatusOK
	if rollup.Status == probe.StatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	ctx.JSON(status, rollup)
}

// view joins the current catalog with the latest snapshot. Every catalog service appears
// exactly once; services the sweep hasn't covered yet report StatusUnknown.
func (f Frontend) view() []probe.Result {
	c := f.catalogs.Get()
	snapshot := f.snapshot.Latest()

	results := make([]probe.Result, 0, c.Len())
	for _, svc := range c.All() {
		if r, ok := snapshot.Result(svc.Name); ok {
			results = append(results, r)
			continue
		}
		results = append(results, unprobed(svc))
	}

	return results
}

func unprobed(svc catalog.Service) probe.Result {
	return probe.Result{
		Service: svc.Name,
		Tier:    svc.Tier,
		Status:  probe.StatusUnknown,
	}
}

// abort writes err as a JSON error response. Errors carrying an httperror.E status use it;
// anything else is an internal server error.
func abort(ctx *gin.Context, err error) {
	code := http.StatusInternalServerError

	var httpErr *httperror.E
	if errors.As(err, &httpErr) {
		code = httpErr.StatusCode
	}

	ctx.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
