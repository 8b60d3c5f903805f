package probe

import "time"

// Scheduler produces probe ticks at a fixed interval. The next tick is
// armed only after the previous one has been consumed, so a slow iteration
// delays subsequent ticks instead of building up a backlog. The tick
// channel is unbuffered: no tick survives a stop.
type Scheduler struct {
	interval time.Duration
	ticks    chan time.Time
	stop     chan struct{}
}

// NewScheduler starts a scheduler ticking at the given interval.
func NewScheduler(interval time.Duration) *Scheduler {
	s := &Scheduler{
		interval: interval,
		ticks:    make(chan time.Time),
		stop:     make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *Scheduler) loop() {
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case now := <-timer.C:
			select {
			case s.ticks <- now:
				timer.Reset(s.interval)
			case <-s.stop:
				return
			}
		case <-s.stop:
			return
		}
	}
}

// Ticks returns the tick channel.
func (s *Scheduler) Ticks() <-chan time.Time {
	return s.ticks
}

// Interval returns the configured tick interval.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Stop halts tick production immediately. Safe to call once.
func (s *Scheduler) Stop() {
	close(s.stop)
}
