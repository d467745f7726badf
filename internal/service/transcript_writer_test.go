package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"psy-relay/internal/domain"
	"psy-relay/internal/repository"
)

type failingAppender struct {
	mu    sync.Mutex
	calls int
}

func (f *failingAppender) AppendSession(context.Context, string, []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errors.New("store down")
}

// gatedAppender bloquea cada append hasta que se cierre release.
type gatedAppender struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedAppender) AppendSession(context.Context, string, []string) error {
	g.once.Do(func() { close(g.started) })
	<-g.release
	return nil
}

func TestTranscriptWriter_FullQueueBlocksEnqueue(t *testing.T) {
	store := &gatedAppender{started: make(chan struct{}), release: make(chan struct{})}
	writer := NewTranscriptWriter(zap.NewNop(), store, 1, 1)

	writer.Enqueue("u1", []string{"a", "b"})
	<-store.started
	writer.Enqueue("u1", []string{"c", "d"})

	done := make(chan struct{})
	go func() {
		writer.Enqueue("u1", []string{"e", "f"})
		close(done)
	}()

	isDone := func() bool {
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
	assert.Never(t, isDone, 100*time.Millisecond, 10*time.Millisecond, "enqueue should wait for queue space")

	close(store.release)
	assert.Eventually(t, isDone, time.Second, 10*time.Millisecond)
	writer.Close()
	assert.Zero(t, writer.Failures())
}

func TestTranscriptWriter_PerUserOrderAcrossUsers(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	var ids []string
	for i := 0; i < 5; i++ {
		u, err := repo.Create(context.Background(), domain.NewUser{FederatedID: fmt.Sprintf("g-%d", i)})
		require.NoError(t, err)
		ids = append(ids, u.ID)
	}

	writer := NewTranscriptWriter(zap.NewNop(), repo, 2, 8)
	const perUser = 20
	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < perUser; i++ {
				writer.Enqueue(id, []string{fmt.Sprintf("m%d", i), "r"})
			}
		}(id)
	}
	wg.Wait()
	writer.Close()

	for _, id := range ids {
		u, err := repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		require.Len(t, u.Transcripts, perUser)
		for i, rec := range u.Transcripts {
			assert.Equal(t, fmt.Sprintf("m%d", i), rec.Exchange[0])
		}
	}
	assert.Zero(t, writer.Failures())
}

func TestTranscriptWriter_CountsFailures(t *testing.T) {
	store := &failingAppender{}
	writer := NewTranscriptWriter(zap.NewNop(), store, 1, 1)
	writer.Enqueue("u1", []string{"a", "b"})
	writer.Enqueue("u2", []string{"c", "d"})
	writer.Wait()

	assert.Equal(t, int64(2), writer.Failures())
	writer.Close()
	assert.Equal(t, 2, store.calls)
}

func TestTranscriptWriter_UnknownUserIsFailure(t *testing.T) {
	writer := NewTranscriptWriter(zap.NewNop(), repository.NewMemoryUserRepository(), 1, 1)
	writer.Enqueue("missing", []string{"a", "b"})
	writer.Wait()
	assert.Equal(t, int64(1), writer.Failures())
	writer.Close()
}

func TestTranscriptWriter_EnqueueAfterCloseIsDropped(t *testing.T) {
	store := &failingAppender{}
	writer := NewTranscriptWriter(zap.NewNop(), store, 2, 2)
	writer.Close()
	writer.Close()

	writer.Enqueue("u1", []string{"a", "b"})
	writer.Wait()
	assert.Equal(t, int64(1), writer.Failures())
	assert.Zero(t, store.calls)
}

func TestTranscriptWriter_CopiesExchange(t *testing.T) {
	repo := repository.NewMemoryUserRepository()
	u, err := repo.Create(context.Background(), domain.NewUser{FederatedID: "g-copy"})
	require.NoError(t, err)

	writer := NewTranscriptWriter(zap.NewNop(), repo, 1, 4)
	exchange := []string{"hello", "hi"}
	writer.Enqueue(u.ID, exchange)
	exchange[0] = "mutated"
	writer.Close()

	stored, err := repo.GetByID(context.Background(), u.ID)
	require.NoError(t, err)
	require.Len(t, stored.Transcripts, 1)
	assert.Equal(t, []string{"hello", "hi"}, stored.Transcripts[0].Exchange)
}
