package systems

import (
	"errors"
	"sync"

	"github.com/spaghettifunk/penumbra/engine/core"
)

var (
	ErrNoWorkers           = errors.New("attempting to create worker pool with less than 1 worker")
	ErrNegativeChannelSize = errors.New("attempting to create worker pool with a negative channel size")
	ErrJobSystemShutdown   = errors.New("job system is shut down")
)

// JobTask is one unit of work. OnComplete or OnFailure runs on the worker
// after Run returns.
type JobTask struct {
	Name       string
	Run        func() error
	OnComplete func()
	OnFailure  func(error)
}

type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

func NewJobSystem(numWorkers int, channelSize int) (*JobSystem, error) {
	if numWorkers <= 0 {
		return nil, ErrNoWorkers
	}
	if channelSize < 0 {
		return nil, ErrNegativeChannelSize
	}
	js := &JobSystem{
		numWorkers: numWorkers,
		jobQueue:   make(chan JobTask, channelSize),
	}
	js.start()
	return js, nil
}

func (js *JobSystem) start() {
	for i := 0; i < js.numWorkers; i++ {
		js.wg.Add(1)
		go func() {
			defer js.wg.Done()
			for job := range js.jobQueue {
				if err := job.Run(); err != nil {
					core.LogDebug("job %s failed: %s", job.Name, err)
					if job.OnFailure != nil {
						job.OnFailure(err)
					}
					continue
				}
				if job.OnComplete != nil {
					job.OnComplete()
				}
			}
		}()
	}
}

// Shutdown drains queued jobs and stops the workers. It is idempotent.
func (js *JobSystem) Shutdown() {
	js.mu.Lock()
	if js.closed {
		js.mu.Unlock()
		return
	}
	js.closed = true
	close(js.jobQueue)
	js.mu.Unlock()
	js.wg.Wait()
}

// Submit queues jt, blocking while the queue is full.
func (js *JobSystem) Submit(jt JobTask) error {
	js.mu.RLock()
	defer js.mu.RUnlock()
	if js.closed {
		return ErrJobSystemShutdown
	}
	js.jobQueue <- jt
	return nil
}

// RunAll runs fns on the workers and waits for all of them. Errors are
// joined in the order of fns.
func (js *JobSystem) RunAll(name string, fns []func() error) error {
	errs := make([]error, len(fns))
	var done sync.WaitGroup
	for i, fn := range fns {
		done.Add(1)
		err := js.Submit(JobTask{
			Name:       name,
			Run:        fn,
			OnComplete: done.Done,
			OnFailure: func(err error) {
				errs[i] = err
				done.Done()
			},
		})
		if err != nil {
			errs[i] = err
			done.Done()
		}
	}
	done.Wait()
	return errors.Join(errs...)
}
