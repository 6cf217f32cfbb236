package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"routedesk/internal/airtable"
	"routedesk/internal/export"
	"routedesk/internal/routing"
	"routedesk/internal/snapshot"
	"routedesk/internal/store"
)

// Problem represents an RFC7807 problem details response body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
	// Applied lists the steps of a multi-step write that did take effect.
	Applied []string `json:"applied,omitempty"`
	// Committed and Pending name the records of a partial batch write.
	Committed []string `json:"committed,omitempty"`
	Pending   []string `json:"pending,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeProblem(w http.ResponseWriter, status int, title, detail, instance string) {
	writeProblemBody(w, Problem{Title: title, Status: status, Detail: detail, Instance: instance})
}

func writeProblemBody(w http.ResponseWriter, p Problem) {
	if p.Type == "" {
		p.Type = "about:blank"
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, title string, err error) {
	p := Problem{Title: title, Detail: err.Error(), Instance: r.URL.Path}

	var (
		ie  *routing.InconsistencyError
		pe  *routing.PersistenceError
		pbe *store.PartialBatchError
		ae  *airtable.APIError
	)
	switch {
	case errors.As(err, &ie):
		p.Status = http.StatusBadGateway
		p.Title = "Route partially updated"
		p.Applied = ie.Applied
		if errors.As(err, &pbe) {
			p.Committed, p.Pending = pbe.Committed, pbe.Pending
		}
		log.Error().Err(err).Str("path", r.URL.Path).Strs("applied", ie.Applied).Msg("multi-step write left inconsistent")
	case errors.As(err, &pbe):
		p.Status = http.StatusBadGateway
		p.Committed, p.Pending = pbe.Committed, pbe.Pending
	case errors.Is(err, store.ErrNotFound), errors.Is(err, snapshot.ErrNotCached), errors.Is(err, routing.ErrStopNotFound):
		p.Status = http.StatusNotFound
	case errors.Is(err, routing.ErrInvalidTransition), errors.Is(err, routing.ErrRouteClosed):
		p.Status = http.StatusConflict
	case errors.Is(err, routing.ErrUnknownDriver), errors.Is(err, routing.ErrEmptyRoute),
		errors.Is(err, routing.ErrDuplicateOrder), errors.Is(err, routing.ErrBadDeliveryDate),
		errors.Is(err, export.ErrNoOrders):
		p.Status = http.StatusUnprocessableEntity
	case errors.As(err, &pe), errors.As(err, &ae):
		p.Status = http.StatusBadGateway
	default:
		p.Status = http.StatusInternalServerError
	}
	writeProblemBody(w, p)
}
