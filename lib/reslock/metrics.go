package reslock

import (
	"github.com/VictoriaMetrics/metrics"
)

// Operation counters, exposed in Prometheus format via
// metrics.WritePrometheus. They are process-global: a process usually runs
// one locker, and splitting the counts per instance would only complicate
// scraping.
var (
	mAcquired  = metrics.NewCounter("reslock_acquired_total")
	mTimeout   = metrics.NewCounter("reslock_timeout_total")
	mReclaimed = metrics.NewCounter("reslock_reclaimed_total")
	mReleased  = metrics.NewCounter("reslock_released_total")
	mSwept     = metrics.NewCounter("reslock_swept_total")
)
