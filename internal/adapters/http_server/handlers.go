// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"wanderwise/internal/app"
	"wanderwise/internal/domain"
)

type Handlers struct {
	Catalog  *app.CatalogService
	Bookings *app.BookingService
	Preview  PreviewOptions
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(200)
		_, _ = w.Write([]byte("ok"))
	})

	s.mux.Group(func(r chi.Router) {
		r.Use(Timeout(s.timeout))

		// any method reaches the handler so non-POST gets the booking-shaped 405
		r.HandleFunc("/api/booking", h.booking)
		r.Get("/api/preview", h.preview)

		r.Route("/v1", func(r chi.Router) {
			r.Get("/regions", h.listRegions)
			r.Get("/regions/{slug}", h.getRegion)
			r.Get("/destinations", h.listDestinations)
			r.Get("/destinations/{slug}", h.getDestination)
			r.Get("/packages/{uid}", h.getPackage)
		})
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		// Log but don't fail the whole response; return empty ETag and best-effort body.
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable answers 304 when the client already holds this version.
func writeCacheable(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func catalogError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, domain.ErrNotFound) {
		writeProblem(w, http.StatusNotFound, "Not Found", what+" not found")
		return
	}
	log.Error().Err(err).Str("resource", what).Msg("catalog query failed")
	writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
}

func (h *Handlers) listRegions(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.ListRegions(r.Context())
	if err != nil {
		catalogError(w, err, "regions")
		return
	}
	writeCacheable(w, r, map[string]any{"regions": out})
}

func (h *Handlers) getRegion(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.GetRegion(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		catalogError(w, err, "region")
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) listDestinations(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.ListDestinations(r.Context())
	if err != nil {
		catalogError(w, err, "destinations")
		return
	}
	writeCacheable(w, r, map[string]any{"destinations": out})
}

func (h *Handlers) getDestination(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.GetDestination(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		catalogError(w, err, "destination")
		return
	}
	writeCacheable(w, r, out)
}

func (h *Handlers) getPackage(w http.ResponseWriter, r *http.Request) {
	out, err := h.Catalog.GetPackage(r.Context(), chi.URLParam(r, "uid"))
	if err != nil {
		catalogError(w, err, "package")
		return
	}
	writeCacheable(w, r, out)
}
