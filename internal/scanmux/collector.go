package scanmux

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/banshee-data/presence.report/internal/presence"
)

// Scanner is the contract the pipeline loop consumes: one blocking call
// per cycle that collects for the full window and returns the batch.
type Scanner interface {
	Scan(ctx context.Context, window time.Duration) ([]presence.Observation, error)
}

// Collector folds the sniffer's advertisement line stream into discrete
// per-window observation batches. Within a window the same address may be
// reported many times; the collector keeps the most recent reading per
// address so one scan yields at most one observation per device.
type Collector struct {
	mux ScanMuxInterface
}

// NewCollector creates a Collector reading from the given mux. The mux's
// Monitor loop must be running for Scan to see any lines.
func NewCollector(mux ScanMuxInterface) *Collector {
	return &Collector{mux: mux}
}

// Scan subscribes to the sniffer for the duration of the window and
// returns the deduplicated batch, sorted by address for deterministic
// downstream processing. Context cancellation ends the scan early with
// the context error, and a sniffer failure (the mux's monitor exiting,
// or the port closing) ends it with the mux error; either way whatever
// was collected is discarded.
func (c *Collector) Scan(ctx context.Context, window time.Duration) ([]presence.Observation, error) {
	id, lines := c.mux.Subscribe()
	defer c.mux.Unsubscribe(id)

	timer := time.NewTimer(window)
	defer timer.Stop()

	byAddress := make(map[string]presence.Observation)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timer.C:
			batch := make([]presence.Observation, 0, len(byAddress))
			for _, obs := range byAddress {
				batch = append(batch, obs)
			}
			sort.Slice(batch, func(i, j int) bool { return batch[i].Address < batch[j].Address })
			return batch, nil

		case line, ok := <-lines:
			if !ok {
				// the stream died underneath us; a partial window must not
				// be recorded as a genuine cycle, so report the failure
				// instead of returning what was collected
				err := c.mux.Err()
				if err == nil {
					err = ErrSnifferClosed
				}
				return nil, fmt.Errorf("sniffer unavailable: %w", err)
			}

			obs, err := ParseAdvertisement(line)
			if err != nil {
				continue // boot banner, command echo, or junk
			}

			// last reading wins, but never let a reading with no RSSI
			// replace one that had a usable value
			if prev, ok := byAddress[obs.Address]; ok && obs.RSSI == nil && prev.RSSI != nil {
				if obs.Name != "" && prev.Name == "" {
					prev.Name = obs.Name
					byAddress[obs.Address] = prev
				}
				continue
			}
			if obs.Name == "" {
				if prev, ok := byAddress[obs.Address]; ok && prev.Name != "" {
					obs.Name = prev.Name
				}
			}
			byAddress[obs.Address] = obs
		}
	}
}

// Verify at compile time that *Collector implements Scanner.
var _ Scanner = (*Collector)(nil)
