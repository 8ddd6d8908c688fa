package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"TrendLab/pkg/logger"
)

// LocalQueue runs jobs on in-process workers. It is used when Redis is not
// configured and in tests; messages do not survive a restart.
type LocalQueue struct {
	logger *logger.Logger
	config *QueueConfig
	jobs   map[string]Job
	ch     chan Message

	mu       sync.RWMutex
	statuses map[string]*JobStatus
	running  bool
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// NewLocalQueue creates an in-process queue.
func NewLocalQueue(lgr *logger.Logger, config *QueueConfig, jobs ...Job) *LocalQueue {
	if lgr == nil {
		lgr = logger.Nop()
	}
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 64
	}

	q := &LocalQueue{
		logger:   lgr,
		config:   config,
		jobs:     make(map[string]Job),
		ch:       make(chan Message, config.QueueSize),
		statuses: make(map[string]*JobStatus),
	}
	for _, j := range jobs {
		q.jobs[j.Type()] = j
	}
	return q
}

// Start launches the workers.
func (q *LocalQueue) Start() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.running {
		return fmt.Errorf("queue already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	q.running = true
	for i := 0; i < q.config.Workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
	q.logger.Info("local queue started", logger.Int("workers", q.config.Workers))
	return nil
}

// Stop cancels running jobs and waits for the workers.
func (q *LocalQueue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.running {
		q.mu.Unlock()
		return nil
	}
	q.running = false
	q.cancel()
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		return nil
	}
}

func (q *LocalQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) (string, error) {
	q.mu.RLock()
	running := q.running
	_, known := q.jobs[msgType]
	q.mu.RUnlock()
	if !running {
		return "", ErrNotRunning
	}
	if !known {
		return "", fmt.Errorf("%w: %s", ErrUnknownType, msgType)
	}

	msg, err := newMessage(msgType, payload)
	if err != nil {
		return "", err
	}
	q.setStatus(statusOf(msg, StateQueued, nil))

	select {
	case q.ch <- msg:
		return msg.ID, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (q *LocalQueue) Status(_ context.Context, id string) (*JobStatus, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	st, ok := q.statuses[id]
	if !ok {
		return nil, ErrStatusMissing
	}
	cp := *st
	return &cp, nil
}

func (q *LocalQueue) SetResult(_ context.Context, id string, result interface{}) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	st, ok := q.statuses[id]
	if !ok {
		return ErrStatusMissing
	}
	st.Result = raw
	return nil
}

func (q *LocalQueue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-q.ch:
			q.process(ctx, msg)
		}
	}
}

func (q *LocalQueue) process(ctx context.Context, msg Message) {
	job := q.jobs[msg.Type]
	for {
		q.setStatus(statusOf(msg, StateRunning, nil))
		start := time.Now()
		err := job.Handle(ctx, msg)
		if err == nil {
			q.setStatus(statusOf(msg, StateDone, nil))
			q.logger.Debug("job done",
				logger.String("id", msg.ID),
				logger.String("job", job.Name()),
				logger.Duration("elapsed", time.Since(start)))
			return
		}

		q.logger.Error("message processing error",
			logger.String("id", msg.ID),
			logger.String("job", job.Name()),
			logger.Int("attempt", msg.Attempts+1),
			logger.Error(err))

		if msg.Attempts >= q.config.RetryLimit || ctx.Err() != nil {
			q.setStatus(statusOf(msg, StateFailed, err))
			return
		}
		msg.Attempts++
		select {
		case <-ctx.Done():
			q.setStatus(statusOf(msg, StateFailed, ctx.Err()))
			return
		case <-time.After(q.config.RetryDelay):
		}
	}
}

func (q *LocalQueue) setStatus(st JobStatus) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if prev, ok := q.statuses[st.ID]; ok && st.Result == nil {
		st.Result = prev.Result
	}
	q.statuses[st.ID] = &st
}
