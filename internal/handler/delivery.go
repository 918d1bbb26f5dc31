package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mlaflamme/proofonsite/internal/auth"
	"github.com/mlaflamme/proofonsite/internal/model"
	"github.com/mlaflamme/proofonsite/internal/store"
	"github.com/mlaflamme/proofonsite/internal/websocket"
)

const (
	defaultDeliveryLimit = 100
	maxDeliveryLimit     = 100
)

type DeliveryHandler struct {
	sites      *store.SiteStore
	deliveries *store.DeliveryStore
	blobs      PhotoStorage
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewDeliveryHandler(
	sites *store.SiteStore,
	deliveries *store.DeliveryStore,
	blobs PhotoStorage,
	hub *websocket.Hub,
	logger *slog.Logger,
) *DeliveryHandler {
	return &DeliveryHandler{
		sites:      sites,
		deliveries: deliveries,
		blobs:      blobs,
		hub:        hub,
		logger:     logger,
	}
}

type deliveryResponse struct {
	ID         string                 `json:"id"`
	SiteID     string                 `json:"site_id"`
	PhotoURL   string                 `json:"photo_url"`
	CapturedAt time.Time              `json:"captured_at"`
	Metadata   model.DeliveryMetadata `json:"metadata"`
}

func toDeliveryResponse(d model.Delivery) deliveryResponse {
	resp := deliveryResponse{
		ID:         d.ID,
		SiteID:     d.SiteID,
		PhotoURL:   d.PhotoURL,
		CapturedAt: d.CapturedAt,
	}
	// Metadata is opaque in storage; a row written before a schema change
	// may not parse, which leaves zero values rather than failing the list.
	_ = json.Unmarshal([]byte(d.Metadata), &resp.Metadata)
	return resp
}

// List handles GET /api/sites/{id}/deliveries
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	site, err := h.sites.GetByIDForOwner(r.PathValue("id"), user.ID)
	if err != nil {
		h.logger.Error("get site for deliveries", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}
	if site == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}

	limit := defaultDeliveryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if n > maxDeliveryLimit {
			n = maxDeliveryLimit
		}
		limit = n
	}

	deliveries, err := h.deliveries.ListBySite(site.ID, limit)
	if err != nil {
		h.logger.Error("list deliveries", "site_id", site.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}

	out := make([]deliveryResponse, 0, len(deliveries))
	for _, d := range deliveries {
		out = append(out, toDeliveryResponse(d))
	}
	writeJSON(w, http.StatusOK, out)
}

// Delete handles DELETE /api/sites/{id}/deliveries/{deliveryID}. The photo
// object is removed best effort; the row delete is what matters.
func (h *DeliveryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	site, err := h.sites.GetByIDForOwner(r.PathValue("id"), user.ID)
	if err != nil {
		h.logger.Error("get site for delivery delete", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete delivery")
		return
	}
	if site == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return
	}

	delivery, err := h.deliveries.GetBySite(r.PathValue("deliveryID"), site.ID)
	if err != nil {
		h.logger.Error("get delivery", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete delivery")
		return
	}
	if delivery == nil {
		writeError(w, http.StatusNotFound, "delivery not found")
		return
	}

	if h.blobs.Configured() {
		if err := h.blobs.DeletePhoto(r.Context(), delivery.PhotoURL); err != nil {
			h.logger.Warn("delete photo object", "delivery_id", delivery.ID, "error", err)
		}
	}

	if err := h.deliveries.Delete(delivery.ID); err != nil {
		h.logger.Error("delete delivery", "delivery_id", delivery.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to delete delivery")
		return
	}

	h.hub.Publish(user.ID, websocket.NewMessage("delivery", "deleted", delivery.ID, map[string]any{"site_id": site.ID}))
	w.WriteHeader(http.StatusNoContent)
}
