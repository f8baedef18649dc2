package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSetupGracefulShutdown_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	ctx, shutdown := SetupGracefulShutdown(parent)
	defer shutdown()

	cancel()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("context was not cancelled")
	}
}

func TestSetupGracefulShutdown_ClosersReverseOrder(t *testing.T) {
	var order []string
	_, shutdown := SetupGracefulShutdown(context.Background(),
		func() error { order = append(order, "first"); return nil },
		func() error { order = append(order, "second"); return errors.New("boom") },
	)

	shutdown()
	assert.Equal(t, []string{"second", "first"}, order)
}
