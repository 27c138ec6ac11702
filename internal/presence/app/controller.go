//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presenceapp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/harborwatch/ble-gate-presence-service/internal/presence"
)

type snapshotDest struct {
	w      io.Writer
	result chan error
}

type beaconQuery struct {
	id   string
	resp chan *presence.StaticBeacon
}

type escalationQuery struct {
	id   string
	resp chan *presence.EscalationNotice
}

// taskLoop is our main event loop for everything that touches beacon state.
//
// Since nearly every round through this loop must read or write the registry, funneling
// readings, API queries and scheduled sweeps through one goroutine keeps the
// modifications safe without lock contention on the registry itself. This is also what
// satisfies the engine's single-writer contract for per-beacon FSM state.
func (app *PresenceApp) taskLoop(ctx context.Context) {
	as := app.config.AppSettings
	escalationTicker := time.NewTicker(time.Duration(as.EscalationCheckIntervalSeconds) * time.Second)
	ageoutTicker := time.NewTicker(1 * time.Hour)
	defer func() {
		escalationTicker.Stop()
		ageoutTicker.Stop()
	}()

	// load cached beacon data
	var restored []presence.StaticBeacon
	cacheData, err := os.ReadFile(filepath.Join(cacheFolder, beaconCacheFile))
	if err != nil {
		app.lc.Warn("Failed to load beacon snapshot.", "error", err.Error())
	} else if err := json.Unmarshal(cacheData, &restored); err != nil {
		app.lc.Warn("Failed to unmarshal beacon snapshot.", "error", err.Error())
		restored = nil
	}

	serviceCfg := presence.ServiceConfig{AppSettings: as, Calibration: app.config.Calibration()}
	processor := presence.NewBeaconProcessor(app.lc, serviceCfg, restored)
	if len(restored) > 0 {
		app.lc.Info(fmt.Sprintf("Restored %d beacon(s) from cache.", len(restored)))
	}

	// publish an escalation notice only when a beacon's tier changes, so the fan-out
	// service is not re-notified every sweep
	lastLevels := make(map[string]int)

	app.lc.Info("Starting task loop.")
	for {
		select {
		case <-ctx.Done():
			app.lc.Info("Stopping task loop.")
			app.persistSnapshot(processor.Snapshot())
			app.lc.Info("Task loop stopped.")
			return

		case r := <-app.readings:
			event, err := processor.ProcessReading(r)
			if err != nil {
				app.lc.Warn("Rejected reading.", "error", err.Error())
				continue
			}
			if event == nil {
				continue
			}

			app.publishEvent(event)
			app.persistSnapshot(processor.Snapshot())

		case t := <-escalationTicker.C:
			for _, notice := range processor.CheckEscalations(t) {
				if last, seen := lastLevels[notice.BeaconID]; seen && last == notice.UrgencyLevel {
					continue
				}
				lastLevels[notice.BeaconID] = notice.UrgencyLevel

				app.lc.Info("Escalation tier reached.",
					"beacon", notice.BeaconID, "level", notice.UrgencyLevel)
				if err := app.broker.PublishEscalation(app.config.EscalationTopic, notice); err != nil {
					app.lc.Error("Failed to publish escalation notice.",
						"beacon", notice.BeaconID, "error", err.Error())
				}
			}

		case t := <-ageoutTicker.C:
			app.lc.Debug("Running AgeOut.", "time", fmt.Sprintf("%v", t))
			if removed := processor.AgeOut(); removed > 0 {
				for id := range lastLevels {
					if _, ok := processor.StateOf(id); !ok {
						delete(lastLevels, id)
					}
				}
				app.persistSnapshot(processor.Snapshot())
			}

		case req := <-app.snapshotReqs:
			data, err := json.Marshal(processor.Snapshot())
			if err == nil {
				_, err = req.w.Write(data) // only write if there was no error already
			}
			req.result <- err

		case q := <-app.beaconReqs:
			if b, ok := processor.StateOf(q.id); ok {
				q.resp <- &b
			} else {
				q.resp <- nil
			}

		case q := <-app.escalationReqs:
			if notice, ok := processor.EscalationFor(q.id, time.Now()); ok {
				q.resp <- &notice
			} else {
				q.resp <- nil
			}
		}
	}
}

// publishEvent forwards a presence event to the trip-logging topic. Entering/exiting a
// beacon is the service's primary observable output, so failures are logged loudly but
// do not stop processing.
func (app *PresenceApp) publishEvent(event presence.Event) {
	if err := app.broker.PublishEvent(app.config.EventsTopic, event); err != nil {
		app.lc.Error("Failed to publish presence event.",
			"type", string(event.OfType()), "error", err.Error())
	}
}

func (app *PresenceApp) persistSnapshot(snapshot []presence.StaticBeacon) {
	app.lc.Debug("Persisting beacon snapshot.")
	data, err := json.Marshal(snapshot)
	if err != nil {
		app.lc.Warn("Failed to marshal beacon snapshot.", "error", err.Error())
		return
	}

	if err := os.WriteFile(filepath.Join(cacheFolder, beaconCacheFile), data, filePerm); err != nil {
		app.lc.Warn("Failed to persist beacon snapshot.", "error", err.Error())
		return
	}
	app.lc.Debug("Persisted beacon snapshot.", "beacons", len(snapshot))
}

// requestSnapshot asks the task loop to write the current registry snapshot to w.
//
// The writer and an error channel travel into the task loop, which writes the snapshot
// and closes the round trip. This lets REST callers block until the request has been
// fulfilled in a thread-safe manner without impacting the processing logic.
func (app *PresenceApp) requestSnapshot(w io.Writer) error {
	writeErr := make(chan error, 1)
	app.snapshotReqs <- snapshotDest{w, writeErr}
	return <-writeErr
}
