package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mlaflamme/proofonsite/internal/auth"
	"github.com/mlaflamme/proofonsite/internal/model"
	"github.com/mlaflamme/proofonsite/internal/sitecode"
	"github.com/mlaflamme/proofonsite/internal/store"
	"github.com/mlaflamme/proofonsite/internal/websocket"
)

const maxNotificationEmails = 10

type SiteHandler struct {
	sites      *store.SiteStore
	deliveries *store.DeliveryStore
	blobs      PhotoStorage
	codes      *sitecode.Generator
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewSiteHandler(
	sites *store.SiteStore,
	deliveries *store.DeliveryStore,
	blobs PhotoStorage,
	codes *sitecode.Generator,
	hub *websocket.Hub,
	logger *slog.Logger,
) *SiteHandler {
	return &SiteHandler{
		sites:      sites,
		deliveries: deliveries,
		blobs:      blobs,
		codes:      codes,
		hub:        hub,
		logger:     logger,
	}
}

type createSiteRequest struct {
	Name               string   `json:"name"`
	Address            string   `json:"address"`
	ContactName        string   `json:"contact_name"`
	ContactPhone       string   `json:"contact_phone"`
	Notes              string   `json:"notes"`
	NotificationEmails []string `json:"notification_emails"`
}

func validateSiteFields(name, address string, emails []string) string {
	if len(name) < 2 || len(name) > 120 {
		return "name must be between 2 and 120 characters"
	}
	if address == "" || len(address) > 300 {
		return "address is required and must be at most 300 characters"
	}
	if len(emails) > maxNotificationEmails {
		return "at most 10 notification emails are allowed"
	}
	for _, e := range emails {
		if !validEmail(e) {
			return "notification emails must be valid addresses"
		}
	}
	return ""
}

func normalizeEmails(emails []string) []string {
	out := make([]string, 0, len(emails))
	for _, e := range emails {
		out = append(out, normalizeEmail(e))
	}
	return out
}

// Create handles POST /api/sites
func (h *SiteHandler) Create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req createSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	name := strings.TrimSpace(req.Name)
	address := strings.TrimSpace(req.Address)
	emails := normalizeEmails(req.NotificationEmails)
	if msg := validateSiteFields(name, address, emails); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	site := &model.Site{
		OwnerID:            user.ID,
		Name:               name,
		Address:            address,
		Status:             model.SiteStatusActive,
		ContactName:        strings.TrimSpace(req.ContactName),
		ContactPhone:       strings.TrimSpace(req.ContactPhone),
		Notes:              strings.TrimSpace(req.Notes),
		NotificationEmails: emails,
	}

	created, err := h.insertWithFreshIdentifiers(r, site)
	if err != nil {
		if store.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "a site with this name already exists")
			return
		}
		h.logger.Error("create site", "owner_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create site")
		return
	}

	h.hub.Publish(user.ID, websocket.NewMessage("site", "created", created.ID, nil))
	writeJSON(w, http.StatusCreated, created)
}

// insertWithFreshIdentifiers allocates a reference code and capture token
// and inserts the site. The allocator pre-checks the code, but the unique
// index is the real authority: one insert-level collision gets a second
// attempt with fresh identifiers before the error surfaces (a repeat then
// almost certainly means a duplicate (owner, name) pair, not a code clash).
func (h *SiteHandler) insertWithFreshIdentifiers(r *http.Request, site *model.Site) (*model.Site, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		code, err := h.codes.Allocate(r.Context())
		if err != nil {
			return nil, err
		}
		site.ID = uuid.NewString()
		site.ReferenceCode = code
		site.CaptureToken = uuid.NewString()

		created, err := h.sites.Create(site)
		if err == nil {
			return created, nil
		}
		if !store.IsUniqueViolation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

// List handles GET /api/sites
func (h *SiteHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sites, err := h.sites.ListByOwner(user.ID)
	if err != nil {
		h.logger.Error("list sites", "owner_id", user.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list sites")
		return
	}
	if sites == nil {
		sites = []model.Site{}
	}
	writeJSON(w, http.StatusOK, sites)
}

// Get handles GET /api/sites/{id}. A site owned by someone else is a 404,
// never a 403.
func (h *SiteHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	site, err := h.sites.GetByIDForOwner(r.PathValue("id"), user.ID)
	if err != nil {
		h.logger.Error("get site", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get site")
		return
	}
	if site == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}
	writeJSON(w, http.StatusOK, site)
}

type updateSiteRequest struct {
	Name               *string   `json:"name"`
	Address            *string   `json:"address"`
	Status             *string   `json:"status"`
	ContactName        *string   `json:"contact_name"`
	ContactPhone       *string   `json:"contact_phone"`
	Notes              *string   `json:"notes"`
	NotificationEmails *[]string `json:"notification_emails"`
}

// Update handles PUT /api/sites/{id}. Absent fields keep their current
// values; reference code and capture token are immutable.
func (h *SiteHandler) Update(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	site, err := h.sites.GetByIDForOwner(r.PathValue("id"), user.ID)
	if err != nil {
		h.logger.Error("get site for update", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get site")
		return
	}
	if site == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}

	var req updateSiteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if req.Name != nil {
		site.Name = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		site.Address = strings.TrimSpace(*req.Address)
	}
	if req.Status != nil {
		if *req.Status != model.SiteStatusActive && *req.Status != model.SiteStatusArchived {
			writeError(w, http.StatusBadRequest, "status must be active or archived")
			return
		}
		site.Status = *req.Status
	}
	if req.ContactName != nil {
		site.ContactName = strings.TrimSpace(*req.ContactName)
	}
	if req.ContactPhone != nil {
		site.ContactPhone = strings.TrimSpace(*req.ContactPhone)
	}
	if req.Notes != nil {
		site.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.NotificationEmails != nil {
		site.NotificationEmails = normalizeEmails(*req.NotificationEmails)
	}

	if msg := validateSiteFields(site.Name, site.Address, site.NotificationEmails); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	updated, err := h.sites.Update(site.ID, user.ID, site)
	if err != nil {
		if store.IsUniqueViolation(err) {
			writeError(w, http.StatusConflict, "a site with this name already exists")
			return
		}
		h.logger.Error("update site", "site_id", site.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to update site")
		return
	}
	if updated == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}

	h.hub.Publish(user.ID, websocket.NewMessage("site", "updated", updated.ID, nil))
	writeJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/sites/{id}. Stored photos are removed best
// effort before the rows; a failed object delete is logged, not fatal.
func (h *SiteHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	site, err := h.sites.GetByIDForOwner(r.PathValue("id"), user.ID)
	if err != nil {
		h.logger.Error("get site for delete", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete site")
		return
	}
	if site == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}

	if h.blobs.Configured() {
		deliveries, err := h.deliveries.ListBySite(site.ID, 10000)
		if err != nil {
			h.logger.Error("list deliveries for cleanup", "site_id", site.ID, "error", err)
		}
		for _, d := range deliveries {
			if err := h.blobs.DeletePhoto(r.Context(), d.PhotoURL); err != nil {
				h.logger.Warn("delete photo object", "delivery_id", d.ID, "error", err)
			}
		}
	}

	deleted, err := h.sites.Delete(site.ID, user.ID)
	if err != nil {
		h.logger.Error("delete site", "site_id", site.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete site")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}

	h.hub.Publish(user.ID, websocket.NewMessage("site", "deleted", site.ID, nil))
	w.WriteHeader(http.StatusNoContent)
}
