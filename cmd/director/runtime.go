package main

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"paranoia.ai/internal/persistence/indexdb"
	ticklog "paranoia.ai/internal/persistence/log"
	"paranoia.ai/internal/persistence/snapshot"
	"paranoia.ai/internal/sim/director"
	"paranoia.ai/internal/sim/station"
	"paranoia.ai/internal/sim/station/stationsim"
	"paranoia.ai/internal/transport/ws"
)

// stationRuntime drives the station simulation and the director from one
// goroutine and fans each tick out to the logs, the index and the feed.
type stationRuntime struct {
	runID         string
	runDir        string
	catalogDigest string
	snapEvery     uint64

	dir   *director.Director
	sim   *stationsim.Sim
	ticks *ticklog.TickLogger
	idx   *indexdb.SQLiteIndex // optional
	hub   *ws.Hub              // optional
	log   *zap.Logger

	lastTick      atomic.Uint64
	lastSuspicion atomic.Int64
	activeThreats atomic.Int64
	headlines     atomic.Uint64
}

func (r *stationRuntime) step(tick uint64) error {
	events := r.sim.Step(tick)
	suppressed := r.sim.SuppressedSystems()
	sup := station.SuppressedSet{}
	for _, s := range suppressed {
		sup[s] = true
	}
	in := director.TickInput{
		Tick:       tick,
		Snapshot:   r.sim.Snapshot(),
		Events:     events,
		Suppressor: sup,
		Pacing:     r.sim.Pacing(),
	}
	res := r.dir.Tick(in, r.sim)
	r.sim.UpdatePacing(res.Headlines)
	digest := r.dir.Digest(tick)

	entry, err := ticklog.NewTickEntry(in, suppressed, res, digest)
	if err != nil {
		return err
	}
	if err := r.ticks.WriteTick(entry); err != nil {
		return fmt.Errorf("tick log: %w", err)
	}
	r.idx.WriteTick(entry)

	status := r.dir.ThreatStatus()
	if r.hub != nil {
		r.hub.Publish(ws.TickMsg{
			Tick:      tick,
			Suspicion: res.Suspicion,
			Channel:   entry.Channel,
			Headlines: res.Headlines,
			Threats:   status,
		})
	}
	for _, h := range res.Headlines {
		r.log.Info("headline",
			zap.Uint64("tick", tick),
			zap.Stringer("priority", h.Priority),
			zap.String("message", h.Message))
	}

	r.lastTick.Store(tick)
	r.lastSuspicion.Store(int64(res.Suspicion))
	r.activeThreats.Store(int64(len(status)))
	r.headlines.Add(uint64(len(res.Headlines)))

	if r.snapEvery > 0 && tick%r.snapEvery == 0 {
		if err := r.writeSnapshot(tick); err != nil {
			r.log.Warn("snapshot write failed", zap.Uint64("tick", tick), zap.Error(err))
		}
	}
	return nil
}

func (r *stationRuntime) writeSnapshot(tick uint64) error {
	snap := snapshot.Capture(r.runID, tick, r.dir, r.catalogDigest)
	path := snapshot.PathFor(r.runDir, tick)
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		return err
	}
	r.idx.RecordSnapshot(path, snap)
	r.log.Debug("snapshot written", zap.Uint64("tick", tick), zap.String("path", path))
	return nil
}
