package observability

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestObservability_SpansAndMetrics(t *testing.T) {
	o := New("carmarket-search-test")
	defer o.Shutdown()

	ctx, span := o.StartSpan(context.Background(), "search", attribute.String("backend", "postgres"))
	assert.True(t, span.SpanContext().IsValid())
	EndSpan(span, stderrors.New("boom"))

	o.RecordSearchResults(ctx, "postgres", 12)
	o.RecordJobProcessed(ctx, "search-listings", "completed")
	o.RecordJobDuration(ctx, "search-listings", 15*time.Millisecond)
}

func TestObservability_ZeroValueIsSafe(t *testing.T) {
	var o Observability
	ctx, span := o.StartSpan(context.Background(), "noop")
	EndSpan(span, nil)
	o.RecordSearchResults(ctx, "postgres", 1)
	o.Shutdown()
}
