package database

import (
	"sync"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var poolMetricsOnce sync.Once

// RegisterPoolMetrics exposes connection pool gauges for the shared DB handle.
func RegisterPoolMetrics(db *sqlx.DB) {
	poolMetricsOnce.Do(func() {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "siteforge_db_open_connections",
			Help: "Open connections in the database pool",
		}, func() float64 {
			return float64(db.Stats().OpenConnections)
		})
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "siteforge_db_in_use_connections",
			Help: "Connections currently in use",
		}, func() float64 {
			return float64(db.Stats().InUse)
		})
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "siteforge_db_wait_count",
			Help: "Total connections waited for",
		}, func() float64 {
			return float64(db.Stats().WaitCount)
		})
	})
}
