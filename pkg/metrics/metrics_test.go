package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestEmitCheckThreadSafety(t *testing.T) {
	before := testutil.ToFloat64(checksTotal.WithLabelValues("causal", "Satisfied", ""))

	var wg sync.WaitGroup
	for i := 0; i < 1000; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitCheck("causal", "Satisfied", "")
		}()
	}
	wg.Wait()

	assert.Equal(t, before+1000, testutil.ToFloat64(checksTotal.WithLabelValues("causal", "Satisfied", "")))
}

func TestQueueDepth(t *testing.T) {
	SetQueueDepth(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(queueDepth))
	SetQueueDepth(0)
	assert.Equal(t, float64(0), testutil.ToFloat64(queueDepth))
}

func TestRegisterTwice(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
	RegisterCheckSuccess("serializable", time.Millisecond)
	RegisterCheckFailure("serializable", time.Second)
	ObserveEncodingClauses(100)
	assert.Equal(t, 2, testutil.CollectAndCount(checkDurationSummary))
	assert.Equal(t, 1, testutil.CollectAndCount(encodingClauses))
}
