package refresh

import (
	"sync"
	"time"
)

// DefaultZoomDelay collapses a burst of zoom steps into one refresh.
const DefaultZoomDelay = 100 * time.Millisecond

// Debouncer runs only the most recently scheduled action of a burst.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	id    uint64
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultZoomDelay
	}
	return &Debouncer{delay: delay}
}

// Schedule arranges for fn to run after the delay unless another Schedule
// or Stop happens first.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.id++
	id := d.id
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, func() {
		d.mu.Lock()
		current := d.id == id
		d.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Stop drops any pending action.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.id++
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
