package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	Register()
	Register()

	before := testutil.ToFloat64(formPublished.WithLabelValues("skipped"))
	IncFormPublished("skipped")
	assert.Equal(t, before+1, testutil.ToFloat64(formPublished.WithLabelValues("skipped")))

	ObserveRender(20*time.Millisecond, 4096)
	assert.Equal(t, float64(4096), testutil.ToFloat64(pageBytes))

	before = testutil.ToFloat64(configProblems)
	AddConfigProblems(2)
	assert.Equal(t, before+2, testutil.ToFloat64(configProblems))
}
