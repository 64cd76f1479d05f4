package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSearchCacheCounter(t *testing.T) {
	before := testutil.ToFloat64(SearchCache.WithLabelValues("hit"))
	SearchCache.WithLabelValues("hit").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(SearchCache.WithLabelValues("hit")))
}

func TestWorkerCountersRegistered(t *testing.T) {
	WorkerJobsFailed.WithLabelValues("search-listings", "SEARCH_QUERY_FAILED").Inc()
	assert.Equal(t, 1, testutil.CollectAndCount(WorkerJobsFailed))
}
