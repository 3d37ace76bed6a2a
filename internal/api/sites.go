package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitegate-io/sitegate/internal/db"
	"github.com/sitegate-io/sitegate/internal/repositories"
)

// SiteHandler serves the tenant-site management endpoints (admin only).
type SiteHandler struct {
	sites  repositories.SiteRepository
	logger *zap.Logger
}

// NewSiteHandler creates a SiteHandler.
func NewSiteHandler(sites repositories.SiteRepository, logger *zap.Logger) *SiteHandler {
	return &SiteHandler{sites: sites, logger: logger.Named("site_handler")}
}

type siteResponse struct {
	ID     string `json:"id"`
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

func toSiteResponse(s *db.Site) siteResponse {
	return siteResponse{ID: s.ID.String(), Domain: s.Domain, Name: s.Name}
}

// List handles GET /api/v1/sites.
func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := listOptionsFromQuery(r)

	sites, total, err := h.sites.List(r.Context(), opts)
	if err != nil {
		h.logger.Error("listing sites failed", zap.Error(err))
		ErrInternal(w)
		return
	}

	out := make([]siteResponse, 0, len(sites))
	for i := range sites {
		out = append(out, toSiteResponse(&sites[i]))
	}

	Ok(w, envelope{"sites": out, "total": total})
}

// createSiteRequest is the JSON body expected by POST /api/v1/sites.
type createSiteRequest struct {
	Domain string `json:"domain"`
	Name   string `json:"name"`
}

// Create handles POST /api/v1/sites.
func (h *SiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSiteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Domain == "" {
		ErrBadRequest(w, "domain is required")
		return
	}

	site := &db.Site{Domain: req.Domain, Name: req.Name}
	if err := h.sites.Create(r.Context(), site); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			ErrConflict(w, "domain already registered")
			return
		}
		h.logger.Error("creating site failed", zap.String("domain", req.Domain), zap.Error(err))
		ErrInternal(w)
		return
	}

	Created(w, toSiteResponse(site))
}

// addEditorRequest is the JSON body expected by POST /api/v1/sites/{id}/editors.
type addEditorRequest struct {
	UserID string `json:"user_id"`
}

// AddEditor handles POST /api/v1/sites/{id}/editors, granting a user edit
// access to the site and with it the right to be redirected to its domain
// after login.
func (h *SiteHandler) AddEditor(w http.ResponseWriter, r *http.Request) {
	siteID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		ErrBadRequest(w, "invalid site id")
		return
	}

	var req addEditorRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" {
		ErrBadRequest(w, "user_id is required")
		return
	}

	if err := h.sites.AddEditor(r.Context(), siteID, req.UserID); err != nil {
		h.logger.Error("adding editor failed",
			zap.String("site_id", siteID.String()),
			zap.String("user_id", req.UserID),
			zap.Error(err),
		)
		ErrInternal(w)
		return
	}

	NoContent(w)
}
