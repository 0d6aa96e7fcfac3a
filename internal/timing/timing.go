package timing

import "time"

// Stopwatch measures the duration of named pipeline phases.
type Stopwatch struct {
	started map[string]time.Time
	elapsed map[string]time.Duration
}

func NewStopwatch() *Stopwatch {
	return &Stopwatch{
		started: make(map[string]time.Time),
		elapsed: make(map[string]time.Duration),
	}
}

// Start begins timing the named phase. Restarting a phase resets it.
func (s *Stopwatch) Start(phase string) {
	s.started[phase] = time.Now()
}

// Stop ends timing the named phase and records its duration.
func (s *Stopwatch) Stop(phase string) time.Duration {
	start, ok := s.started[phase]
	if !ok {
		return 0
	}
	d := time.Since(start)
	s.elapsed[phase] = d
	delete(s.started, phase)
	return d
}

// ElapsedMs returns recorded phase durations in milliseconds.
func (s *Stopwatch) ElapsedMs() map[string]int64 {
	out := make(map[string]int64, len(s.elapsed))
	for phase, d := range s.elapsed {
		out[phase] = d.Milliseconds()
	}
	return out
}
