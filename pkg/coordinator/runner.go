package coordinator

import (
	"time"

	"github.com/rs/zerolog"
)

// Pass is one cron-invoked unit of work: a worker's combined
// discover/preserve/complete cycle, or a shredder's overwrite cycle.
type Pass func() error

// Runner repeatedly invokes a Pass on a fixed interval for operators
// who run an agent as a long-lived process instead of under cron.
type Runner struct {
	interval time.Duration
	pass     Pass
	log      zerolog.Logger
	stopCh   chan struct{}
}

// NewRunner returns a Runner that calls pass every interval.
func NewRunner(interval time.Duration, pass Pass, log zerolog.Logger) *Runner {
	return &Runner{interval: interval, pass: pass, log: log, stopCh: make(chan struct{})}
}

// Start begins the periodic loop in a new goroutine.
func (r *Runner) Start() {
	go r.run()
}

// Stop ends the periodic loop. It does not wait for an in-flight pass.
func (r *Runner) Stop() {
	close(r.stopCh)
}

func (r *Runner) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.log.Info().Dur("interval", r.interval).Msg("agent loop started")
	for {
		select {
		case <-ticker.C:
			if err := r.pass(); err != nil {
				r.log.Error().Err(err).Msg("pass failed")
			}
		case <-r.stopCh:
			r.log.Info().Msg("agent loop stopped")
			return
		}
	}
}
