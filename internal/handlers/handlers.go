// Package handlers exposes the JSON API and the redirect route.
package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/linkcut/linkcut/internal/logger"
	"github.com/linkcut/linkcut/internal/metadata"
	"github.com/linkcut/linkcut/internal/middleware"
	"github.com/linkcut/linkcut/internal/models"
	"github.com/linkcut/linkcut/internal/service"
)

type Handler struct {
	shortener *service.Shortener
	scraper   *metadata.Scraper
	log       *logger.Logger
}

func New(shortener *service.Shortener, scraper *metadata.Scraper) *Handler {
	return &Handler{
		shortener: shortener,
		scraper:   scraper,
		log:       logger.New("http"),
	}
}

// Router wires all routes. The catch-all redirect is registered last so the
// API endpoints always win.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(middleware.CORS)
	r.Use(middleware.RequestLogging(h.log))

	// OPTIONS is listed so mux matches preflights and the CORS middleware
	// gets to answer them; the handlers themselves never see OPTIONS.
	r.HandleFunc("/api/urls/shorten", h.CreateShortLink).Methods(http.MethodPost, http.MethodOptions)
	r.HandleFunc("/api/urls/metadata", h.GetMetadata).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/urls/{slug}/stats", h.GetStats).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/{slug}", h.Redirect).Methods(http.MethodGet)

	return r
}

func (h *Handler) CreateShortLink(w http.ResponseWriter, r *http.Request) {
	var req models.CreateShortLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	link, unwrapped, err := h.shortener.Create(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidInput):
			respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrSlugConflict):
			respondError(w, http.StatusConflict, "custom slug already exists")
		default:
			h.log.Error("failed to create short link: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to create shortened URL")
		}
		return
	}

	respondJSON(w, http.StatusCreated, models.CreateShortLinkResponse{
		ShortURL:     link,
		UnwrappedURL: unwrapped,
	})
}

func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	destination, err := h.shortener.Resolve(r.Context(), slug, service.RequestInfo{
		IPAddress: getClientIP(r),
		UserAgent: r.UserAgent(),
		Referer:   r.Referer(),
	})
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(w, http.StatusNotFound, "URL not found or has expired")
			return
		}
		h.log.Error("failed to resolve %s: %v", slug, err)
		respondError(w, http.StatusInternalServerError, "failed to redirect to URL")
		return
	}

	http.Redirect(w, r, destination, http.StatusFound)
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	stats, err := h.shortener.Stats(r.Context(), slug)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			respondError(w, http.StatusNotFound, "URL not found")
			return
		}
		h.log.Error("failed to get stats for %s: %v", slug, err)
		respondError(w, http.StatusInternalServerError, "failed to get URL stats")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"stats": stats})
}

func (h *Handler) GetMetadata(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		respondError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	meta, err := h.scraper.Fetch(r.Context(), target)
	if err != nil {
		h.log.Warn("metadata fetch failed for %s: %v", target, err)
		respondError(w, http.StatusInternalServerError, "failed to fetch URL metadata")
		return
	}

	respondJSON(w, http.StatusOK, meta)
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, models.ErrorResponse{Error: message})
}

// getClientIP prefers proxy headers over the socket address.
func getClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	if host == "::1" {
		return "127.0.0.1"
	}
	return host
}
