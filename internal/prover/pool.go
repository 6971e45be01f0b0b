package prover

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"zkcred/internal/domain"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"
)

// Job is one unit of proving work. It must release all witness material
// before returning.
type Job func(ctx context.Context) (Result, error)

// SubmitOption adjusts one submission.
type SubmitOption func(*submission)

type submission struct {
	release func()
}

// WithRelease registers fn to run exactly once when the pool is done with the
// job: after it ran, when it was dropped before starting, when it was
// coalesced into an in-flight task, or when Submit refused it.
func WithRelease(fn func()) SubmitOption {
	return func(s *submission) { s.release = fn }
}

func (s *submission) done() {
	if s.release != nil {
		s.release()
	}
}

// Pool runs jobs on a fixed number of workers behind a bounded queue.
//
// Jobs sharing a pair key run one at a time. Jobs sharing a fingerprint while
// one is in flight are coalesced and every caller receives the same result.
type Pool struct {
	workers  *semaphore.Weighted
	capacity *semaphore.Weighted
	obs      Observer
	log      logrus.FieldLogger

	mu       sync.Mutex
	closed   bool
	pending  int
	inflight map[string]*Task
	pairs    map[string]*pairLock
}

type pairLock struct {
	ch   chan struct{}
	refs int
}

// NewPool sizes the pool to workers concurrent jobs plus queue waiting ones.
// A non-positive worker count uses the number of CPUs.
func NewPool(workers, queue int, obs Observer, log logrus.FieldLogger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queue < 0 {
		queue = 0
	}
	if obs == nil {
		obs = nopObserver{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pool{
		workers:  semaphore.NewWeighted(int64(workers)),
		capacity: semaphore.NewWeighted(int64(workers + queue)),
		obs:      obs,
		log:      log,
		inflight: make(map[string]*Task),
		pairs:    make(map[string]*pairLock),
	}
}

// Submit schedules job and returns a handle to its result. A full queue is
// reported as ErrTransientResource.
func (p *Pool) Submit(ctx context.Context, pairKey, fingerprint string, job Job, opts ...SubmitOption) (*Handle, error) {
	sub := &submission{}
	for _, opt := range opts {
		opt(sub)
	}
	if err := ctx.Err(); err != nil {
		sub.done()
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		sub.done()
		return nil, fmt.Errorf("%w: proving pool is closed", domain.ErrTransientResource)
	}
	if fingerprint != "" {
		if t, ok := p.inflight[fingerprint]; ok {
			if h := t.attach(); h != nil {
				p.log.WithField("task_key", pairKey).Debug("coalesced proving request")
				sub.done()
				return h, nil
			}
		}
	}
	if !p.capacity.TryAcquire(1) {
		sub.done()
		return nil, fmt.Errorf("%w: proving queue is full", domain.ErrTransientResource)
	}
	taskCtx, cancel := context.WithCancel(context.Background())
	t := newTask(cancel)
	h := t.attach()
	if fingerprint != "" {
		p.inflight[fingerprint] = t
	}
	p.pending++
	p.obs.SetQueueDepth(p.pending)
	go p.run(taskCtx, t, pairKey, fingerprint, job, sub)
	return h, nil
}

// Pending reports queued plus running jobs.
func (p *Pool) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending
}

// Close rejects new submissions. Running jobs finish normally.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func (p *Pool) run(ctx context.Context, t *Task, pairKey, fingerprint string, job Job, sub *submission) {
	defer sub.done()
	defer func() {
		p.mu.Lock()
		if fingerprint != "" && p.inflight[fingerprint] == t {
			delete(p.inflight, fingerprint)
		}
		p.pending--
		p.obs.SetQueueDepth(p.pending)
		p.mu.Unlock()
		p.capacity.Release(1)
		t.cancel()
	}()

	unlock, err := p.lockPair(ctx, pairKey)
	if err != nil {
		t.complete(Result{}, err)
		return
	}
	defer unlock()
	if err := p.workers.Acquire(ctx, 1); err != nil {
		t.complete(Result{}, err)
		return
	}
	defer p.workers.Release(1)

	res, err := runJob(ctx, job)
	t.complete(res, err)
}

func runJob(ctx context.Context, job Job) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: prover panic: %v", domain.ErrProvingFailed, r)
		}
	}()
	return job(ctx)
}

func (p *Pool) lockPair(ctx context.Context, key string) (func(), error) {
	if key == "" {
		return func() {}, nil
	}
	p.mu.Lock()
	l, ok := p.pairs[key]
	if !ok {
		l = &pairLock{ch: make(chan struct{}, 1)}
		p.pairs[key] = l
	}
	l.refs++
	p.mu.Unlock()

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			p.releasePair(key, l)
		}, nil
	case <-ctx.Done():
		p.releasePair(key, l)
		return nil, ctx.Err()
	}
}

func (p *Pool) releasePair(key string, l *pairLock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	l.refs--
	if l.refs == 0 && p.pairs[key] == l {
		delete(p.pairs, key)
	}
}
