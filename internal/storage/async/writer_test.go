package async

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_RunsSubmittedTasks(t *testing.T) {
	w := NewWriter(WriterOptions{Workers: 2, QueueSize: 8})

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		w.Submit("write", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	w.Close()

	assert.Equal(t, int32(5), ran.Load())
}

func TestWriter_FailuresReachErrorChannel(t *testing.T) {
	w := NewWriter(WriterOptions{Workers: 1, QueueSize: 4})

	boom := errors.New("boom")
	w.Submit("bad write", func(ctx context.Context) error {
		return boom
	})

	select {
	case err := <-w.Errors():
		require.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("expected error on channel")
	}
	w.Close()
}

func TestWriter_CloseDrainsQueue(t *testing.T) {
	w := NewWriter(WriterOptions{Workers: 1, QueueSize: 16})

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		w.Submit("write", func(ctx context.Context) error {
			time.Sleep(time.Millisecond)
			ran.Add(1)
			return nil
		})
	}
	w.Close()

	assert.Equal(t, int32(10), ran.Load())
}
