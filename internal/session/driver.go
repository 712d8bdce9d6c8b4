package session

import (
	"context"

	"github.com/banshee-data/spraypaint/internal/timeutil"
)

// Run calls Tick on every tick from ticker until ctx is cancelled, then
// stops the ticker. now supplies monotonic seconds. manual, if non-nil, is
// polled once per tick for a pending operator fire request.
func (m *Manager) Run(ctx context.Context, ticker timeutil.Ticker, now func() float64, manual func() bool) error {
	defer ticker.Stop()

	last := now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C():
			t := now()
			f := Frame{Now: t, Dt: t - last}
			if manual != nil {
				f.ManualFire = manual()
			}
			m.Tick(f)
			last = t
		}
	}
}
