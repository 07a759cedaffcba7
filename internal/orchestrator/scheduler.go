package orchestrator

import "errors"

// Continuation asks for one more chunk of a job to be processed.
type Continuation struct {
	JobID string
	Chunk int
}

// Scheduler hands continuations to whatever executes chunks. The
// in-process worker uses ChannelScheduler; a nil scheduler on the
// service means the caller drives chunks itself (RunJob).
type Scheduler interface {
	ScheduleContinuation(jobID string, nextChunk int) error
}

type ChannelScheduler struct {
	queue chan Continuation
}

func NewChannelScheduler(buffer int) *ChannelScheduler {
	if buffer <= 0 {
		buffer = 64
	}
	return &ChannelScheduler{queue: make(chan Continuation, buffer)}
}

func (s *ChannelScheduler) ScheduleContinuation(jobID string, nextChunk int) error {
	select {
	case s.queue <- Continuation{JobID: jobID, Chunk: nextChunk}:
		return nil
	default:
		return errors.New("continuation queue full")
	}
}

func (s *ChannelScheduler) Queue() <-chan Continuation {
	return s.queue
}
