package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestAsynqMetricsMiddleware_Results(t *testing.T) {
	const taskType = "test:metrics"
	cases := []struct {
		result string
		err    error
	}{
		{"ok", nil},
		{"retry", errors.New("chromium crashed")},
		{"skip_retry", fmt.Errorf("decode: %w", asynq.SkipRetry)},
	}
	for _, tc := range cases {
		t.Run(tc.result, func(t *testing.T) {
			before := testutil.ToFloat64(taskProcessedTotal.WithLabelValues(taskType, tc.result))
			handler := AsynqMetricsMiddleware()(asynq.HandlerFunc(func(context.Context, *asynq.Task) error {
				return tc.err
			}))
			if err := handler.ProcessTask(context.Background(), asynq.NewTask(taskType, nil)); !errors.Is(err, tc.err) {
				t.Fatalf("error not passed through: %v", err)
			}
			after := testutil.ToFloat64(taskProcessedTotal.WithLabelValues(taskType, tc.result))
			if after-before != 1 {
				t.Fatalf("counter delta = %v", after-before)
			}
			if got := testutil.ToFloat64(taskInProgress.WithLabelValues(taskType)); got != 0 {
				t.Fatalf("in progress = %v", got)
			}
		})
	}
}
