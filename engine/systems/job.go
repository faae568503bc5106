package systems

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/shadercache/engine/core"
)

/** @brief Describes a job to be run by the job system. */
type JobTask struct {
	/** @brief Runs on a worker. The returned value is handed to OnComplete. */
	OnStart func(params interface{}) (interface{}, error)
	/** @brief Optional. Called with the result of a successful job. */
	OnComplete func(result interface{})
	/** @brief Optional. Called with the error of a failed job. */
	OnFailure func(err error)
	/** @brief Optional. Called after either of the above. */
	OnCompletionCallback func()
	/** @brief Passed to OnStart. */
	InputParams interface{}
}

// JobSystem runs jobs on a fixed set of workers. Callbacks run on the worker
// that ran the job, so they must be safe for concurrent use.
type JobSystem struct {
	numWorkers int
	jobQueue   chan JobTask
	wg         sync.WaitGroup
	pending    sync.WaitGroup
	closeOnce  sync.Once
}

var ErrNoWorkers = fmt.Errorf("attempting to create worker pool with less than 1 worker")
var ErrNegativeChannelSize = fmt.Errorf("attempting to create worker pool with a negative channel size")

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
				js.run(job)
			}
		}()
	}
}

func (js *JobSystem) run(job JobTask) {
	defer js.pending.Done()

	result, err := job.OnStart(job.InputParams)
	if err != nil {
		core.LogError("%s", err)
		if job.OnFailure != nil {
			job.OnFailure(err)
		}
	} else if job.OnComplete != nil {
		job.OnComplete(result)
	}

	if job.OnCompletionCallback != nil {
		job.OnCompletionCallback()
	}
}

/**
 * @brief Shuts the job system down after the queued jobs ran.
 */
func (js *JobSystem) Shutdown() error {
	js.closeOnce.Do(func() {
		close(js.jobQueue)
	})
	js.wg.Wait()
	return nil
}

/**
 * @brief Blocks until every submitted job finished.
 */
func (js *JobSystem) Wait() {
	js.pending.Wait()
}

// TrySubmit queues the job only if the queue has room, and reports whether it did.
func (js *JobSystem) TrySubmit(jt JobTask) bool {
	js.pending.Add(1)
	select {
	case js.jobQueue <- jt:
		return true
	default:
		js.pending.Done()
		return false
	}
}

// RunOnCaller runs the job on the calling goroutine with the same callbacks a
// worker would invoke. Wait covers it like any submitted job.
func (js *JobSystem) RunOnCaller(jt JobTask) {
	js.pending.Add(1)
	js.run(jt)
}

/**
 * @brief Submits the provided job to be queued for execution.
 * @param jt The description of the job to be executed.
 */
func (js *JobSystem) Submit(jt JobTask) {
	js.pending.Add(1)
	js.jobQueue <- jt
}
