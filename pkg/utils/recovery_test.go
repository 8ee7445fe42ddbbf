package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/timkado/api/affiliate-lead-service/pkg/logger"
	"go.uber.org/zap/zaptest"
)

func TestSafeGo(t *testing.T) {
	original := logger.Log
	logger.Log = zaptest.NewLogger(t)
	t.Cleanup(func() { logger.Log = original })

	done := make(chan struct{})
	SafeGo(func() { close(done) }, nil)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("function did not run")
	}

	recovered := make(chan interface{}, 1)
	SafeGo(func() { panic("boom") }, func(r interface{}, stack []byte) {
		assert.NotEmpty(t, stack)
		recovered <- r
	})
	select {
	case r := <-recovered:
		assert.Equal(t, "boom", r)
	case <-time.After(time.Second):
		t.Fatal("panic was not recovered")
	}

	// default handler logs instead of crashing
	defaulted := make(chan struct{})
	SafeGo(func() {
		defer close(defaulted)
		panic("logged")
	}, nil)
	<-defaulted
}

func TestWrapWithContextRecovery(t *testing.T) {
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))

	ok := WrapWithContextRecovery(func(ctx context.Context) error { return nil })
	assert.NoError(t, ok(ctx))

	failing := errors.New("handler failed")
	passthrough := WrapWithContextRecovery(func(ctx context.Context) error { return failing })
	assert.ErrorIs(t, passthrough(ctx), failing)

	panicking := WrapWithContextRecovery(func(ctx context.Context) error { panic("bad payload") })
	err := panicking(ctx)
	require.Error(t, err)
	assert.Equal(t, "panic recovered: bad payload", err.Error())
}
