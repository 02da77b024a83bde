package scanstage

import (
	"sync"
	"time"

	"github.com/keylock-project/keylock-core/internal/infrastructure/logging"
)

// Mode says why a scan was captured.
type Mode string

// Capture modes.
const (
	// ModeEnrollment holds a scan for key registration. Enrollment scans
	// do not expire; they wait until an admin consumes or clears them.
	ModeEnrollment Mode = "enrollment"

	// ModeAccessCheck holds the most recent access scan for diagnostics.
	// Access scans expire after TTL.
	ModeAccessCheck Mode = "access-check"
)

// TTL is how long an access-check scan stays visible.
const TTL = 30 * time.Second

// sweepInterval is how often the background sweeper runs.
const sweepInterval = 10 * time.Second

// Scan is one staged card read.
type Scan struct {
	CardID     string    `json:"card_id"`
	CapturedAt time.Time `json:"captured_at"`
	Mode       Mode      `json:"mode"`
}

// Cache stages the latest scan per node.
//
// One slot per node: a new scan overwrites whatever was there, including
// an unconsumed enrollment scan. Contents are deliberately volatile and
// vanish on restart.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type Cache struct {
	mu    sync.RWMutex
	scans map[string]Scan

	// now is swappable for tests.
	now func() time.Time

	logger *logging.Logger
	stop   chan struct{}
	done   chan struct{}
}

// NewCache creates an empty scan cache.
func NewCache(logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{
		scans:  make(map[string]Scan),
		now:    time.Now,
		logger: logger.With("component", "scanstage"),
	}
}

// Record stages a scan for a node, replacing any previous one.
func (c *Cache) Record(nodeID, cardID string, mode Mode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scans[nodeID] = Scan{
		CardID:     cardID,
		CapturedAt: c.now(),
		Mode:       mode,
	}
}

// Peek returns the staged scan for a node when it matches the wanted
// mode and has not expired. The scan stays staged; polling is
// non-destructive.
//
// Mode matching is strict: an enrollment poll never sees an access-check
// scan and vice versa.
func (c *Cache) Peek(nodeID string, mode Mode) (Scan, bool) {
	c.mu.RLock()
	s, ok := c.scans[nodeID]
	c.mu.RUnlock()

	if !ok || s.Mode != mode {
		return Scan{}, false
	}
	if c.expired(s) {
		// Lazy eviction keeps Peek correct between sweeps.
		c.mu.Lock()
		if cur, ok := c.scans[nodeID]; ok && cur.CapturedAt.Equal(s.CapturedAt) {
			delete(c.scans, nodeID)
		}
		c.mu.Unlock()
		return Scan{}, false
	}
	return s, true
}

// Clear removes the staged scan for a node.
// Used after a consumed or abandoned enrollment.
func (c *Cache) Clear(nodeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scans, nodeID)
}

// Len returns the number of currently staged scans, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.scans)
}

// Start launches the background sweeper that evicts expired scans.
func (c *Cache) Start() {
	c.mu.Lock()
	if c.stop != nil {
		c.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop = stop
	c.done = done
	c.mu.Unlock()

	go c.sweepLoop(stop, done)
}

// Stop halts the background sweeper and waits for it to exit.
func (c *Cache) Stop() {
	c.mu.Lock()
	stop := c.stop
	done := c.done
	c.stop = nil
	c.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// sweepLoop periodically evicts expired scans.
func (c *Cache) sweepLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep evicts every expired scan in one pass.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	evicted := 0
	for nodeID, s := range c.scans {
		if c.expired(s) {
			delete(c.scans, nodeID)
			evicted++
		}
	}
	if evicted > 0 {
		c.logger.Debug("evicted expired scans", "count", evicted)
	}
}

// expired reports whether a scan has outlived its TTL.
// Enrollment scans never expire.
func (c *Cache) expired(s Scan) bool {
	if s.Mode == ModeEnrollment {
		return false
	}
	return c.now().Sub(s.CapturedAt) >= TTL
}
