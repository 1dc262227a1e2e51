package workers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingReconciler struct {
	calls atomic.Int32
	err   error
}

func (c *countingReconciler) Reconcile(context.Context, time.Duration) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestPollPaymentsRunsUntilCancelled(t *testing.T) {
	for _, err := range []error{nil, errors.New("db down")} {
		r := &countingReconciler{err: err}
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		go func() {
			PollPayments(ctx, r, discardLogger(), 5*time.Millisecond, time.Minute)
			close(done)
		}()

		assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
		cancel()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("poller did not stop")
		}
	}
}
