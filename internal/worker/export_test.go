package worker

import "time"

// SetNow pins the clock of a scheduler.
func (s *Scheduler) SetNow(now func() time.Time) { s.now = now }

// SetNow pins the clock of a notifier.
func (n *Notifier) SetNow(now func() time.Time) { n.now = now }

// SetBackoff shortens the retry pause of a processor.
func (p *Processor) SetBackoff(d time.Duration) { p.backoff = d }
