// Package v1 provides the REST API handlers for the fleet server.
package v1

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fleetforge/fleetserver/internal/fleet"
	"github.com/fleetforge/fleetserver/internal/logger"
	"github.com/fleetforge/fleetserver/internal/service"
)

// ObjectService is the per-kind service surface the routes consume.
type ObjectService[C any] interface {
	Create(ctx context.Context, cfg C) (*fleet.Object[C], error)
	Get(ctx context.Context, id uuid.UUID) (*fleet.Object[C], error)
	List(ctx context.Context) ([]*fleet.Object[C], error)
	UpdateConfig(ctx context.Context, id uuid.UUID, cfg C) (*fleet.Object[C], error)
	RequestDeletion(ctx context.Context, id uuid.UUID) error
	History(ctx context.Context, id uuid.UUID) ([]fleet.HistoryEntry, error)
}

// MachineService extends ObjectService with the machine-only operations.
type MachineService interface {
	ObjectService[fleet.MachineConfig]
	SetPower(ctx context.Context, id uuid.UUID, power fleet.PowerState) (*fleet.Object[fleet.MachineConfig], error)
}

// objectRoutes holds the handlers shared by every object kind.
type objectRoutes[C any] struct {
	svc  ObjectService[C]
	kind fleet.Kind
}

// objectRouter builds the CRUD router for one kind.
func objectRouter[C any](kind fleet.Kind, svc ObjectService[C]) http.Handler {
	routes := &objectRoutes[C]{svc: svc, kind: kind}

	r := chi.NewRouter()
	r.Post("/", routes.create)
	r.Get("/", routes.list)
	r.Get("/{id}", routes.get)
	r.Put("/{id}/config", routes.updateConfig)
	r.Delete("/{id}", routes.requestDeletion)
	r.Get("/{id}/history", routes.history)
	return r
}

// machineRouter builds the machine router: the shared CRUD routes plus
// the power endpoint.
func machineRouter(svc MachineService) http.Handler {
	routes := &objectRoutes[fleet.MachineConfig]{svc: svc, kind: fleet.KindMachine}

	r := chi.NewRouter()
	r.Post("/", routes.create)
	r.Get("/", routes.list)
	r.Get("/{id}", routes.get)
	r.Put("/{id}/config", routes.updateConfig)
	r.Delete("/{id}", routes.requestDeletion)
	r.Get("/{id}/history", routes.history)
	r.Put("/{id}/power", setPowerHandler(svc))
	return r
}

func (rr *objectRoutes[C]) create(w http.ResponseWriter, r *http.Request) {
	var cfg C
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	obj, err := rr.svc.Create(r.Context(), cfg)
	if err != nil {
		rr.writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, newObjectResponse(obj))
}

func (rr *objectRoutes[C]) list(w http.ResponseWriter, r *http.Request) {
	objects, err := rr.svc.List(r.Context())
	if err != nil {
		rr.writeServiceError(w, err)
		return
	}

	resp := ObjectListResponse[C]{Objects: make([]ObjectResponse[C], 0, len(objects))}
	for _, obj := range objects {
		resp.Objects = append(resp.Objects, newObjectResponse(obj))
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

func (rr *objectRoutes[C]) get(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r)
	if !ok {
		return
	}

	obj, err := rr.svc.Get(r.Context(), id)
	if err != nil {
		rr.writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newObjectResponse(obj))
}

func (rr *objectRoutes[C]) updateConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r)
	if !ok {
		return
	}

	var cfg C
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}

	obj, err := rr.svc.UpdateConfig(r.Context(), id, cfg)
	if err != nil {
		rr.writeServiceError(w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, newObjectResponse(obj))
}

func (rr *objectRoutes[C]) requestDeletion(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r)
	if !ok {
		return
	}

	if err := rr.svc.RequestDeletion(r.Context(), id); err != nil {
		rr.writeServiceError(w, err)
		return
	}
	// The row is removed by the controller once teardown finishes.
	w.WriteHeader(http.StatusAccepted)
}

func (rr *objectRoutes[C]) history(w http.ResponseWriter, r *http.Request) {
	id, ok := parseObjectID(w, r)
	if !ok {
		return
	}

	entries, err := rr.svc.History(r.Context(), id)
	if err != nil {
		rr.writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []fleet.HistoryEntry{}
	}
	writeJSONResponse(w, http.StatusOK, HistoryResponse{Entries: entries})
}

func setPowerHandler(svc MachineService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseObjectID(w, r)
		if !ok {
			return
		}

		var req SetPowerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeErrorResponse(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
			return
		}

		obj, err := svc.SetPower(r.Context(), id, req.Power)
		if err != nil {
			writeMappedError(w, fleet.KindMachine, err)
			return
		}
		writeJSONResponse(w, http.StatusOK, newObjectResponse(obj))
	}
}

func parseObjectID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, "Invalid object id", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}

func (rr *objectRoutes[C]) writeServiceError(w http.ResponseWriter, err error) {
	writeMappedError(w, rr.kind, err)
}

// writeMappedError translates service errors into HTTP status codes.
func writeMappedError(w http.ResponseWriter, kind fleet.Kind, err error) {
	switch {
	case errors.Is(err, fleet.ErrNotFound):
		writeErrorResponse(w, "Object not found", http.StatusNotFound)
	case errors.Is(err, fleet.ErrStaleVersion):
		writeErrorResponse(w, "Object was modified concurrently, retry with fresh state", http.StatusConflict)
	case errors.Is(err, service.ErrValidation):
		writeErrorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		logger.Errorf("Request against %s failed: %v", kind, err)
		writeErrorResponse(w, "Internal server error", http.StatusInternalServerError)
	}
}

// writeJSONResponse writes a JSON response with the given status and data
func writeJSONResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("Failed to encode JSON response: %v", err)
	}
}

// writeErrorResponse writes a standardized error response
func writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, statusCode, ErrorResponse{Error: message})
}
