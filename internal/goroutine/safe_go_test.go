package goroutine

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	mu   sync.Mutex
	msgs []string
}

func (c *captureLogger) Errorf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, fmt.Sprintf(format, args...))
}

func (c *captureLogger) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	log := &captureLogger{}
	rh := NewRecoveryHandler(log)

	rh.SafeGo(func() { panic("boom") })

	require.Eventually(t, func() bool { return log.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Contains(t, log.msgs[0], "boom")
}

func TestFanOut_CollectsErrorsPerID(t *testing.T) {
	pool := workerpool.New(2)
	defer pool.StopWait()

	var calls int32
	errs := FanOut(pool, []string{"a", "b", "c", "d"}, func(id string) error {
		atomic.AddInt32(&calls, 1)
		switch id {
		case "b":
			return errors.New("failed")
		case "c":
			panic("bad")
		}
		return nil
	})

	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
	require.Len(t, errs, 2)
	assert.EqualError(t, errs["b"], "failed")
	assert.Contains(t, errs["c"].Error(), "panic")
}

func TestFanOut_Empty(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.StopWait()
	assert.Empty(t, FanOut(pool, nil, func(string) error { return nil }))
}
