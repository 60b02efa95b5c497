package matching

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	swipesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "matching_swipes_total",
			Help: "Total number of recorded swipes",
		},
		[]string{"action"},
	)

	matchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_matches_total",
			Help: "Total number of matches created",
		},
	)

	matchRaceLossesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_match_race_losses_total",
			Help: "Match inserts resolved against an already-existing record",
		},
	)

	compatibilityScores = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "matching_compatibility_scores",
			Help:    "Distribution of computed compatibility scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		},
	)

	scoreCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_score_cache_hits_total",
			Help: "Score cache lookups served without recomputation",
		},
	)

	scoreCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_score_cache_misses_total",
			Help: "Score cache lookups that required recomputation",
		},
	)

	storeRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "matching_store_retries_total",
			Help: "Retries of transient datastore failures",
		},
	)
)

func RecordSwipe(action string) {
	swipesTotal.WithLabelValues(action).Inc()
}

func RecordMatch() {
	matchesTotal.Inc()
}

func RecordMatchRaceLoss() {
	matchRaceLossesTotal.Inc()
}

func RecordCompatibilityScore(score int) {
	compatibilityScores.Observe(float64(score))
}

func RecordCacheHit() {
	scoreCacheHits.Inc()
}

func RecordCacheMiss() {
	scoreCacheMisses.Inc()
}

func RecordStoreRetry() {
	storeRetriesTotal.Inc()
}
