package dispatch

import "time"

// Stats is a snapshot of the worker's counters.
type Stats struct {
	IsRunning   bool       `json:"is_running"`
	Cycles      uint64     `json:"cycles"`
	Claimed     uint64     `json:"claimed"`
	Sent        uint64     `json:"sent"`
	Retried     uint64     `json:"retried"`
	Failed      uint64     `json:"failed"`
	Skipped     uint64     `json:"skipped"`
	LastError   string     `json:"last_error,omitempty"`
	LastErrorAt *time.Time `json:"last_error_at,omitempty"`
	LastCycleAt *time.Time `json:"last_cycle_at,omitempty"`
}

// GetStats returns current worker statistics.
func (d *Dispatcher) GetStats() Stats {
	running := d.IsRunning()

	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	s := d.stats
	s.IsRunning = running
	return s
}

func (d *Dispatcher) recordClaimed(n int) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats.Claimed += uint64(n)
}

func (d *Dispatcher) recordCycle(at time.Time) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats.Cycles++
	d.stats.LastCycleAt = &at
}

func (d *Dispatcher) recordSent() {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats.Sent++
}

func (d *Dispatcher) recordRetried() {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats.Retried++
}

func (d *Dispatcher) recordSkipped() {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats.Skipped++
}

func (d *Dispatcher) recordFailed(err error) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	d.stats.Failed++
	if err != nil {
		now := time.Now()
		d.stats.LastError = err.Error()
		d.stats.LastErrorAt = &now
	}
}

func (d *Dispatcher) recordError(err error) {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	now := time.Now()
	d.stats.LastError = err.Error()
	d.stats.LastErrorAt = &now
}
