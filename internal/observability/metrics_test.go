package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordCommit(t *testing.T) {
	okBefore := testutil.ToFloat64(commitsTotal.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(commitsTotal.WithLabelValues("error"))

	RecordCommit(true)
	RecordCommit(true)
	RecordCommit(false)

	assert.Equal(t, okBefore+2, testutil.ToFloat64(commitsTotal.WithLabelValues("ok")))
	assert.Equal(t, errBefore+1, testutil.ToFloat64(commitsTotal.WithLabelValues("error")))
}

func TestRecordCalendarCounters(t *testing.T) {
	parseBefore := testutil.ToFloat64(ruleParseFailures)
	truncBefore := testutil.ToFloat64(truncatedInstances)
	hitBefore := testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))

	RecordRuleParseFailure()
	RecordTruncated()
	RecordCacheLookup(true)

	assert.Equal(t, parseBefore+1, testutil.ToFloat64(ruleParseFailures))
	assert.Equal(t, truncBefore+1, testutil.ToFloat64(truncatedInstances))
	assert.Equal(t, hitBefore+1, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")))
}
