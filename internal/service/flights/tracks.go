package flights

import (
	"context"
	"sync"

	"github.com/Domenick1991/bushcharter/internal/domain"
	"github.com/Domenick1991/bushcharter/internal/metrics"
)

const trackBuffer = 16

// Tracks fans telemetry for many bookings out to one Track loop per booking.
type Tracks struct {
	flights FlightUseCase
	ctx     context.Context

	mu    sync.Mutex
	feeds map[string]chan domain.Fix
	wg    sync.WaitGroup
}

// NewTracks returns a dispatcher whose loops stop when ctx is done.
func NewTracks(ctx context.Context, flights FlightUseCase) *Tracks {
	return &Tracks{
		flights: flights,
		ctx:     ctx,
		feeds:   make(map[string]chan domain.Fix),
	}
}

// Push hands fix to the booking's loop, starting one if needed. A full feed
// drops the fix.
func (t *Tracks) Push(bookingID, pilotID string, fix domain.Fix) {
	t.mu.Lock()
	feed, ok := t.feeds[bookingID]
	if !ok {
		feed = make(chan domain.Fix, trackBuffer)
		t.feeds[bookingID] = feed
		t.wg.Add(1)
		go t.run(bookingID, pilotID, feed)
	}
	t.mu.Unlock()

	select {
	case feed <- fix:
	default:
		metrics.TelemetryDropped.Inc()
	}
}

func (t *Tracks) run(bookingID, pilotID string, feed chan domain.Fix) {
	defer t.wg.Done()
	_ = t.flights.Track(t.ctx, bookingID, pilotID, feed)

	t.mu.Lock()
	if t.feeds[bookingID] == feed {
		delete(t.feeds, bookingID)
	}
	t.mu.Unlock()
}

// Active reports how many bookings are being tracked.
func (t *Tracks) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.feeds)
}

// Wait blocks until every loop has returned.
func (t *Tracks) Wait() {
	t.wg.Wait()
}
