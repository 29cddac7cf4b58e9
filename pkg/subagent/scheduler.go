// Package subagent pkg/subagent/scheduler.go
//
// The updater scheduler: one loop per region, refreshing its snapshot
// immediately and then on the region's interval, concurrent with the
// dispatch loop.
package subagent

import (
	"context"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/snmpkit/agentx/pkg/mib"
)

// updaterGrace bounds how long teardown waits for updaters to notice
// cancellation.
const updaterGrace = 5 * time.Second

// startUpdaters launches the refresh loop of every registered region.
// The returned stop function cancels them and waits out the grace
// period.
func (s *Session) startUpdaters(ctx context.Context) (stop func()) {
	uctx, cancel := context.WithCancel(ctx)

	var g errgroup.Group

	s.mu.RLock()
	regions := append([]*Region(nil), s.regions...)
	s.mu.RUnlock()

	for _, r := range regions {
		r := r
		rctx, rcancel := context.WithCancel(uctx)

		r.mu.Lock()
		r.cancel = rcancel
		r.mu.Unlock()

		g.Go(func() error {
			s.updaterLoop(rctx, r)
			return nil
		})
	}

	return func() {
		cancel()

		done := make(chan struct{})

		go func() {
			_ = g.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(updaterGrace):
			log.Printf("Updaters did not stop within %v, abandoning them", updaterGrace)
		}
	}
}

func (s *Session) updaterLoop(ctx context.Context, r *Region) {
	s.refreshRegion(ctx, r)

	interval := r.interval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refreshRegion(ctx, r)
		}
	}
}

// refreshRegion runs one update. A failed update keeps the previous
// snapshot; the next attempt happens at the regular interval.
func (s *Session) refreshRegion(ctx context.Context, r *Region) {
	b := mib.NewBuilder(r.root)

	if err := safeUpdate(ctx, r.updater, b); err != nil {
		log.Printf("Updater for region %s failed: %v", r.root, err)
		s.metrics.UpdaterRefresh(r.root.String(), false)

		return
	}

	snap := b.Snapshot()
	r.publish(snap)
	s.metrics.UpdaterRefresh(r.root.String(), true)
	s.metrics.SetSnapshotBindings(r.root.String(), snap.Len())
}

func safeUpdate(ctx context.Context, u Updater, b *mib.Builder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Updater panic: %v", r)
			err = errUpdaterPanic
		}
	}()

	return u.Update(ctx, b)
}
