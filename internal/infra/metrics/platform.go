package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		buildInfo,
		dbPoolConns,
		dbPoolAcquires,
		cacheRequestsTotal,
	)
}

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_build_info",
			Help: "Always 1; labels carry the running build.",
		},
		[]string{"version", "commit", "go_version"},
	)

	dbPoolConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_db_pool_connections",
			Help: "Postgres pool connections by state.",
		},
		[]string{"state"}, // total|idle|acquired|max
	)

	dbPoolAcquires = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "storefront_db_pool_acquires",
			Help: "Cumulative pool acquires since start; kind=empty counts waits for a free connection.",
		},
		[]string{"kind"}, // all|empty
	)

	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cache_requests_total",
			Help: "Lookups served by the product cache and the gateway registry.",
		},
		[]string{"cache", "result"}, // product|gateway, hit|miss|error
	)
)

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

// PoolSample is one reading of the database pool.
type PoolSample struct {
	Total, Idle, Acquired, Max int32
	Acquires, EmptyAcquires    int64
}

func SetDBPool(s PoolSample) {
	dbPoolConns.WithLabelValues("total").Set(float64(s.Total))
	dbPoolConns.WithLabelValues("idle").Set(float64(s.Idle))
	dbPoolConns.WithLabelValues("acquired").Set(float64(s.Acquired))
	dbPoolConns.WithLabelValues("max").Set(float64(s.Max))
	dbPoolAcquires.WithLabelValues("all").Set(float64(s.Acquires))
	dbPoolAcquires.WithLabelValues("empty").Set(float64(s.EmptyAcquires))
}

func IncCacheRequest(cache, result string) {
	cacheRequestsTotal.WithLabelValues(bounded(cache, "product", "gateway"), bounded(result, "hit", "miss", "error")).Inc()
}
