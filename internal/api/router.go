package api

import "net/http"

// Handlers groups every handler set the server mounts.
type Handlers struct {
	Locations *LocationHandlers
	Alerts    *AlertHandlers
	SafeZones *SafeZoneHandlers
	Grants    *GrantHandlers
	Triggers  *TriggerHandlers
	Status    *StatusHandlers
	Stream    *StreamHandlers
	Audit     *AuditHandlers
	Health    *HealthHandlers
}

// Routes registers every endpoint on the mux.
func (h *Handlers) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", h.Health.Health)
	mux.HandleFunc("GET /ready", h.Health.Ready)

	mux.HandleFunc("POST /api/v1/locations", h.Locations.Ingest)
	mux.HandleFunc("GET /api/v1/locations", h.Locations.Circle)
	mux.HandleFunc("GET /api/v1/subjects/{id}/location", h.Locations.Latest)
	mux.HandleFunc("GET /api/v1/subjects/{id}/history", h.Locations.History)

	mux.HandleFunc("GET /api/v1/alerts", h.Alerts.List)
	mux.HandleFunc("POST /api/v1/alerts/{id}/read", h.Alerts.MarkRead)
	mux.HandleFunc("GET /api/v1/subjects/{id}/alerts", h.Alerts.ListForSubject)
	mux.HandleFunc("GET /api/v1/retention", h.Alerts.GetRetention)
	mux.HandleFunc("PUT /api/v1/retention", h.Alerts.SetRetention)

	mux.HandleFunc("POST /api/v1/safe-zones", h.SafeZones.Create)
	mux.HandleFunc("GET /api/v1/safe-zones", h.SafeZones.List)
	mux.HandleFunc("DELETE /api/v1/safe-zones/{id}", h.SafeZones.Deactivate)

	mux.HandleFunc("GET /api/v1/grants", h.Grants.List)
	mux.HandleFunc("PUT /api/v1/grants/{granteeID}", h.Grants.Upsert)
	mux.HandleFunc("POST /api/v1/grants/{granteeID}/profile", h.Grants.ApplyProfile)
	mux.HandleFunc("GET /api/v1/profiles", h.Grants.Profiles)
	mux.HandleFunc("PUT /api/v1/subjects/{id}/supervisor-grant", h.Grants.UpsertSupervisor)

	mux.HandleFunc("POST /api/v1/panic", h.Triggers.Panic)
	mux.HandleFunc("POST /api/v1/geofence-events", h.Triggers.Geofence)
	mux.HandleFunc("POST /api/v1/camera/requests", h.Triggers.CameraRequest)
	mux.HandleFunc("POST /api/v1/camera/responses", h.Triggers.CameraResponse)

	mux.HandleFunc("GET /api/v1/subjects/{id}/status", h.Status.Tranquility)
	mux.HandleFunc("GET /api/v1/subjects/{id}/access-log", h.Audit.AccessLog)
	mux.HandleFunc("GET /api/v1/system/keepalive", h.Status.Keepalive)

	mux.HandleFunc("GET /api/v1/ws", h.Stream.Subscribe)
}
