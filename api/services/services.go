package services

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/rs/zerolog"

	"github.com/directoryhub/directory-services/db"
	"github.com/directoryhub/directory-services/internal/appconfig"
	"github.com/directoryhub/directory-services/internal/apperrors"
	"github.com/directoryhub/directory-services/internal/events"
	"github.com/directoryhub/directory-services/internal/integrity"
	"github.com/directoryhub/directory-services/models"
)

// Service contains all shared dependencies for handlers. Every mutating
// request runs the same staged pipeline: validate, authorize, check
// integrity, persist, cascade, respond — a failure at any stage stops
// the request before the next stage runs.
type Service struct {
	Config    *appconfig.Config
	DB        db.Store
	Publisher events.Notifier
	Integrity *integrity.Engine

	// roleMu serializes every mutation that can change the superadmin
	// count, closing the check-then-act race between concurrent
	// promotions or deletions. Single-instance deployment decision.
	roleMu sync.Mutex
}

// NewService wires a Service around a store and an event publisher.
func NewService(cfg *appconfig.Config, store db.Store, publisher events.Notifier) *Service {
	return &Service{
		Config:    cfg,
		DB:        store,
		Publisher: publisher,
		Integrity: &integrity.Engine{Store: store},
	}
}

// WriteResponse writes a JSON response with the given status code.
func WriteResponse(w http.ResponseWriter, statusCode int, response interface{}, location ...string) {

	w.Header().Set("Content-Type", "application/json")

	// We don't want to cache API responses so the client receives most current data
	w.Header().Set("Cache-Control", "max-age=0")

	// Conditionally set the Location header if provided
	if len(location) > 0 && location[0] != "" {
		w.Header().Set("Location", location[0])
	}

	w.WriteHeader(statusCode)

	if response != nil {
		if err := json.NewEncoder(w).Encode(response); err != nil {
			http.Error(w, "Failed to encode response", http.StatusInternalServerError)
			return
		}
	}
}

// WriteError maps a classified error to its status code and envelope.
// Unclassified errors surface as a generic internal failure so no stack
// detail crosses the trust boundary.
func WriteError(w http.ResponseWriter, err error) {
	kind := apperrors.KindOf(err)
	status := http.StatusInternalServerError
	code := "internal"
	if kind != "" {
		status = apperrors.HTTPStatus(kind)
		code = string(kind)
	}
	WriteResponse(w, status, models.Response{
		Success:      0,
		ErrorCode:    code,
		ErrorDetails: apperrors.DetailOf(err),
	})
}

// publish emits a lifecycle event for a committed mutation. Delivery is
// best effort: the mutation already happened, so a broker outage is
// logged rather than turned into a request failure.
func (s *Service) publish(ctx context.Context, entity, id, action string) {
	if s.Publisher == nil {
		return
	}
	if err := s.Publisher.Publish(ctx, events.Event{Entity: entity, ID: id, Action: action}); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).
			Str("entity", entity).Str("id", id).Str("action", action).
			Msg("failed to publish lifecycle event")
	}
}
