package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// SessionAppender es la parte del repositorio que usa el writer.
type SessionAppender interface {
	AppendSession(ctx context.Context, id string, exchange []string) error
}

var ErrWriterClosed = errors.New("transcript writer closed")

const (
	defaultTranscriptWorkers   = 4
	defaultTranscriptQueueSize = 256
	transcriptAppendTimeout    = 10 * time.Second
)

type transcriptJob struct {
	userID   string
	exchange []string
}

// TranscriptWriter persiste intercambios en segundo plano. Cada usuario se asigna siempre
// al mismo worker, así que sus sesiones se guardan en el orden en que se encolaron.
type TranscriptWriter struct {
	logger *zap.Logger
	store  SessionAppender

	mu      sync.RWMutex
	closed  bool
	queues  []chan transcriptJob
	errs    chan error
	pending sync.WaitGroup
	workers sync.WaitGroup
	drained chan struct{}

	failures  atomic.Int64
	closeOnce sync.Once
}

func NewTranscriptWriter(logger *zap.Logger, store SessionAppender, workers, queueSize int) *TranscriptWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if workers <= 0 {
		workers = defaultTranscriptWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultTranscriptQueueSize
	}
	w := &TranscriptWriter{
		logger:  logger,
		store:   store,
		queues:  make([]chan transcriptJob, workers),
		errs:    make(chan error, queueSize),
		drained: make(chan struct{}),
	}
	for i := range w.queues {
		w.queues[i] = make(chan transcriptJob, queueSize)
		w.workers.Add(1)
		go w.run(w.queues[i])
	}
	go w.logErrors()
	return w
}

// Enqueue agenda el append de un intercambio. Bloquea si la cola del worker está llena;
// en ese caso la respuesta de Relay al cliente se demora hasta que el worker libere lugar.
// Close espera a que terminen los Enqueue en curso.
func (w *TranscriptWriter) Enqueue(userID string, exchange []string) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.failures.Add(1)
		w.logger.Error("transcript dropped", zap.String("user_id", userID), zap.Error(ErrWriterClosed))
		return
	}
	w.pending.Add(1)
	w.queues[w.shard(userID)] <- transcriptJob{
		userID:   userID,
		exchange: append([]string(nil), exchange...),
	}
}

// Wait bloquea hasta que todos los intercambios encolados fueron procesados.
func (w *TranscriptWriter) Wait() {
	w.pending.Wait()
}

// Close deja de aceptar trabajos y drena las colas pendientes.
func (w *TranscriptWriter) Close() {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		for _, q := range w.queues {
			close(q)
		}
		w.mu.Unlock()

		w.workers.Wait()
		close(w.errs)
		<-w.drained
	})
}

// Failures devuelve cuántos appends fallaron o se descartaron.
func (w *TranscriptWriter) Failures() int64 {
	return w.failures.Load()
}

func (w *TranscriptWriter) run(queue <-chan transcriptJob) {
	defer w.workers.Done()
	for job := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), transcriptAppendTimeout)
		err := w.store.AppendSession(ctx, job.userID, job.exchange)
		cancel()
		if err != nil {
			w.failures.Add(1)
			w.errs <- fmt.Errorf("append session for user %s: %w", job.userID, err)
		}
		w.pending.Done()
	}
}

func (w *TranscriptWriter) logErrors() {
	defer close(w.drained)
	for err := range w.errs {
		w.logger.Error("transcript persist failed", zap.Error(err))
	}
}

func (w *TranscriptWriter) shard(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(w.queues)))
}
