// Package initseq runs an ordered list of configuration phases with
// per-phase retry, the pattern the teacher's CreateAndServe uses to walk
// AddDevice -> SetParams -> queue runner startup -> StartDevice in strict
// order, rolling back and failing the whole sequence if any step can't
// complete. Here each phase is asynchronous (it sends a UBX message and
// waits for a dispatcher callback) instead of a synchronous ioctl, so the
// sequencer drives itself through a completion callback rather than a
// linear function body.
package initseq

import "github.com/ublox-gps/ubgps/internal/logging"

// PhaseFunc starts one phase of the sequence. It must arrange for onDone
// to be called exactly once, either synchronously (if the phase can't
// even begin) or later from a dispatcher callback. A non-nil return value
// aborts the sequence immediately without retry — it signals a local
// failure (e.g. a write(2) error) rather than a NAK or timeout from the
// receiver.
type PhaseFunc func(onDone func(ok bool, err error)) error

// Phase is one named step of an init sequence.
type Phase struct {
	Name string
	Run  PhaseFunc
}

// Sequencer runs Phases in order, retrying a failed phase up to
// maxRetries times before giving up on the whole sequence.
type Sequencer struct {
	phases     []Phase
	maxRetries int
	logger     *logging.Logger

	idx        int
	retries    int
	onComplete func(ok bool, failedPhase string)
	running    bool
}

// New returns a Sequencer over phases. maxRetries is the number of
// additional attempts allowed per phase after its first failure (0 means
// no retry).
func New(phases []Phase, maxRetries int, logger *logging.Logger) *Sequencer {
	if logger == nil {
		logger = logging.Default()
	}
	return &Sequencer{phases: phases, maxRetries: maxRetries, logger: logger}
}

// Start begins the sequence from its first phase. onComplete is invoked
// once: with ok=true once every phase has succeeded, or ok=false and the
// name of the phase that exhausted its retries.
func (s *Sequencer) Start(onComplete func(ok bool, failedPhase string)) {
	s.idx = 0
	s.retries = 0
	s.onComplete = onComplete
	s.running = true
	s.runCurrent()
}

// Running reports whether the sequence has started and not yet completed.
func (s *Sequencer) Running() bool {
	return s.running
}

func (s *Sequencer) runCurrent() {
	if s.idx >= len(s.phases) {
		s.finish(true, "")
		return
	}
	phase := s.phases[s.idx]
	if err := phase.Run(s.phaseDone); err != nil {
		s.logger.Warn("init phase failed to start", "phase", phase.Name, "error", err)
		s.finish(false, phase.Name)
	}
}

func (s *Sequencer) phaseDone(ok bool, err error) {
	if !s.running {
		return // sequence already finished or was cancelled
	}
	phase := s.phases[s.idx]

	if ok {
		s.logger.Debug("init phase complete", "phase", phase.Name)
		s.idx++
		s.retries = 0
		s.runCurrent()
		return
	}

	s.retries++
	if s.retries > s.maxRetries {
		s.logger.Warn("init phase exhausted retries", "phase", phase.Name, "error", err)
		s.finish(false, phase.Name)
		return
	}
	s.logger.Debug("retrying init phase", "phase", phase.Name, "attempt", s.retries, "error", err)
	if err := phase.Run(s.phaseDone); err != nil {
		s.finish(false, phase.Name)
	}
}

// Cancel stops the sequence without invoking onComplete. A phase waiter
// already registered with a dispatcher is not automatically cancelled —
// callers that own such waiters should cancel them first.
func (s *Sequencer) Cancel() {
	s.running = false
}

func (s *Sequencer) finish(ok bool, failedPhase string) {
	s.running = false
	if s.onComplete != nil {
		s.onComplete(ok, failedPhase)
	}
}
