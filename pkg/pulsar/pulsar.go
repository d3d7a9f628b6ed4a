package pulsar

import (
	"sync"
	"time"
)

// Pulsar is a pulsating object that generates
// pulses at the configured time intervals. It
// is the single timer behind every periodic job
// of the agent, e.g. the incident feed poller:
//
//	p := pulsar.NewPulsar(5, time.Second) // pulse every 5 seconds
//	for pulse := range p.Pulsate() {
//		feed.Refresh(ctx)
//	}
//
// A pulse is dropped rather than queued when the
// consumer is still busy with the previous one.
type Pulsar struct {
	Period time.Duration

	pulse    *time.Ticker
	kill     chan struct{}
	pulsate  chan time.Time
	stopOnce sync.Once
	started  sync.Once
}

// Stop stops producing pulses and closes the channel
// returned by Pulsate, which releases anyone ranging
// over it. Stop may be called more than once.
func (p *Pulsar) Stop() {
	p.stopOnce.Do(func() {
		p.pulse.Stop()
		close(p.kill)
	})
}

// Pulsate starts pulsating an existing pulsar. The
// pulses can be consumed on the returned channel.
// Calling Pulsate again returns the same channel.
func (p *Pulsar) Pulsate() <-chan time.Time {
	p.started.Do(func() {
		go func() {
			defer close(p.pulsate)

			for {
				select {
				case <-p.kill:
					return
				case t := <-p.pulse.C:
					select {
					case p.pulsate <- t:
					case <-p.kill:
						return
					}
				}
			}
		}()
	})

	return p.pulsate
}

// NewPulsar creates a new Pulsar object and returns
// a pointer to it. Takes the following args:
//
//	period int: time period for the pulses
//	timeUnit time.Duration: the unit eg. time.Millisecond
//		time.Second etc.
func NewPulsar(period int, timeUnit time.Duration) *Pulsar {
	return NewPulsarWithPeriod(time.Duration(period) * timeUnit)
}

// NewPulsarWithPeriod is NewPulsar for callers that
// already hold a time.Duration, like decoded config.
func NewPulsarWithPeriod(period time.Duration) *Pulsar {
	return &Pulsar{
		Period:  period,
		pulse:   time.NewTicker(period),
		kill:    make(chan struct{}),
		pulsate: make(chan time.Time),
	}
}
