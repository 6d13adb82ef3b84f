package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workoutcal",
		Subsystem: "schedule",
		Name:      "commits_total",
		Help:      "Workout instance commits by outcome.",
	}, []string{"result"})
	ruleParseFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "workoutcal",
		Subsystem: "calendar",
		Name:      "rule_parse_failures_total",
		Help:      "Stored recurrence rules that could not be parsed.",
	})
	truncatedInstances = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "workoutcal",
		Subsystem: "calendar",
		Name:      "truncated_instances_total",
		Help:      "Instances whose expansion hit the per-instance occurrence cap.",
	})
	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "workoutcal",
		Subsystem: "calendar",
		Name:      "cache_lookups_total",
		Help:      "Calendar response cache lookups by outcome.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(commitsTotal, ruleParseFailures, truncatedInstances, cacheLookups)
}

// RecordCommit counts a schedule commit.
func RecordCommit(ok bool) {
	commitsTotal.WithLabelValues(result(ok, "ok", "error")).Inc()
}

// RecordRuleParseFailure counts a stored rule that failed to load.
func RecordRuleParseFailure() {
	ruleParseFailures.Inc()
}

// RecordTruncated counts an instance cut off at the occurrence cap.
func RecordTruncated() {
	truncatedInstances.Inc()
}

// RecordCacheLookup counts a calendar cache hit or miss.
func RecordCacheLookup(hit bool) {
	cacheLookups.WithLabelValues(result(hit, "hit", "miss")).Inc()
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
