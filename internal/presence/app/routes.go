//
// Copyright (C) 2023 Intel Corporation
//
// SPDX-License-Identifier: Apache-2.0

package presenceapp

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/harborwatch/ble-gate-presence-service/internal/presence"
)

const (
	apiBase = "/api/v1"

	pingRoute       = apiBase + "/ping"
	beaconsRoute    = apiBase + "/beacons"
	beaconRoute     = apiBase + "/beacons/{id}"
	escalationRoute = apiBase + "/beacons/{id}/escalation"
)

func (app *PresenceApp) addRoutes() {
	app.router.HandleFunc(pingRoute, app.ping).Methods(http.MethodGet)
	app.router.HandleFunc(beaconsRoute, app.getBeacons).Methods(http.MethodGet)
	app.router.HandleFunc(beaconRoute, app.getBeacon).Methods(http.MethodGet)
	app.router.HandleFunc(escalationRoute, app.getEscalation).Methods(http.MethodGet)
}

// Routes
func (app *PresenceApp) ping(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	if _, err := w.Write([]byte("pong")); err != nil {
		app.lc.Error("Error writing ping response.", "error", err.Error())
	}
}

func (app *PresenceApp) getBeacons(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := app.requestSnapshot(w); err != nil {
		msg := fmt.Sprintf("Failed to write beacon snapshot: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func (app *PresenceApp) getBeacon(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	resp := make(chan *presence.StaticBeacon, 1)
	app.beaconReqs <- beaconQuery{id: id, resp: resp}

	beacon := <-resp
	if beacon == nil {
		http.Error(w, fmt.Sprintf("unknown beacon %q", id), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(beacon); err != nil {
		msg := fmt.Sprintf("Failed to write beacon state: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

func (app *PresenceApp) getEscalation(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	resp := make(chan *presence.EscalationNotice, 1)
	app.escalationReqs <- escalationQuery{id: id, resp: resp}

	notice := <-resp
	if notice == nil {
		http.Error(w, fmt.Sprintf("beacon %q is not outside", id), http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(notice); err != nil {
		msg := fmt.Sprintf("Failed to write escalation: %v", err)
		app.lc.Error(msg)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}
