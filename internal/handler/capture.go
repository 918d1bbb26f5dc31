package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/mlaflamme/proofonsite/internal/email"
	"github.com/mlaflamme/proofonsite/internal/model"
	"github.com/mlaflamme/proofonsite/internal/store"
	"github.com/mlaflamme/proofonsite/internal/websocket"
)

const (
	// maxPhotoBytes caps a single proof photo at 5 MiB.
	maxPhotoBytes = 5 << 20

	// multipart framing overhead on top of the photo itself.
	maxCaptureBody = maxPhotoBytes + 1<<20
)

var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// CaptureHandler serves the unauthenticated capture surface reached from a
// site's QR code. The capture token in the URL is the only credential.
type CaptureHandler struct {
	sites      *store.SiteStore
	deliveries *store.DeliveryStore
	users      *store.UserStore
	blobs      PhotoStorage
	notifier   *email.Notifier
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewCaptureHandler(
	sites *store.SiteStore,
	deliveries *store.DeliveryStore,
	users *store.UserStore,
	blobs PhotoStorage,
	notifier *email.Notifier,
	hub *websocket.Hub,
	logger *slog.Logger,
) *CaptureHandler {
	return &CaptureHandler{
		sites:      sites,
		deliveries: deliveries,
		users:      users,
		blobs:      blobs,
		notifier:   notifier,
		hub:        hub,
		logger:     logger,
	}
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

// siteForToken resolves the capture token and enforces the archived gate.
// It writes the error response itself and returns nil when the request
// should not proceed.
func (h *CaptureHandler) siteForToken(w http.ResponseWriter, r *http.Request) *model.Site {
	site, err := h.sites.GetByCaptureToken(r.PathValue("captureToken"))
	if err != nil {
		h.logger.Error("capture token lookup", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return nil
	}
	if site == nil {
		writeError(w, http.StatusNotFound, "site not found")
		return nil
	}
	if site.Status == model.SiteStatusArchived {
		writeError(w, http.StatusForbidden, "site is archived")
		return nil
	}
	return site
}

// Info handles GET /api/capture/{captureToken}/info. It exposes just
// enough for the capture page header; nothing owner-identifying.
func (h *CaptureHandler) Info(w http.ResponseWriter, r *http.Request) {
	site := h.siteForToken(w, r)
	if site == nil {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"site_name":      site.Name,
		"address":        site.Address,
		"reference_code": site.ReferenceCode,
	})
}

// Upload handles POST /api/capture/{captureToken}. Multipart field "photo"
// carries the image.
func (h *CaptureHandler) Upload(w http.ResponseWriter, r *http.Request) {
	site := h.siteForToken(w, r)
	if site == nil {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCaptureBody)

	file, header, err := r.FormFile("photo")
	if err != nil {
		// A body past the cap surfaces here as a read error, not as an
		// oversized part; it still gets the size message.
		if isBodyTooLarge(err) {
			writeError(w, http.StatusBadRequest, "photo exceeds the 5 MiB limit")
			return
		}
		writeError(w, http.StatusBadRequest, "photo is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		if isBodyTooLarge(err) {
			writeError(w, http.StatusBadRequest, "photo exceeds the 5 MiB limit")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read photo")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "photo is required")
		return
	}
	if len(data) > maxPhotoBytes {
		writeError(w, http.StatusBadRequest, "photo exceeds the 5 MiB limit")
		return
	}

	// Sniffed content, not the client-declared header, decides the type.
	contentType := http.DetectContentType(data)
	if !allowedPhotoTypes[contentType] {
		writeError(w, http.StatusBadRequest, "photo must be a JPEG, PNG, or WebP image")
		return
	}

	photoURL, err := h.blobs.UploadPhoto(r.Context(), site.ID, data, contentType)
	if err != nil {
		h.logger.Error("upload photo", "site_id", site.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store photo")
		return
	}

	capturedAt := time.Now().UTC()
	metadata, err := json.Marshal(model.DeliveryMetadata{
		FileSize:         int64(len(data)),
		MimeType:         contentType,
		OriginalFileName: header.Filename,
	})
	if err != nil {
		h.logger.Error("encode delivery metadata", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	delivery, err := h.deliveries.Create(uuid.NewString(), site.ID, photoURL, string(metadata), capturedAt)
	if err != nil {
		h.logger.Error("create delivery", "site_id", site.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to record delivery")
		return
	}

	h.hub.Publish(site.OwnerID, websocket.NewMessage("delivery", "created", delivery.ID, map[string]any{"site_id": site.ID}))

	// Notification is best effort: the delivery is already durable, and
	// the worker at the gate should never see an email failure.
	go h.notifyOwner(site, delivery, int64(len(data)))

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"delivery": map[string]any{
			"id":          delivery.ID,
			"photo_url":   delivery.PhotoURL,
			"captured_at": delivery.CapturedAt,
		},
	})
}

func (h *CaptureHandler) notifyOwner(site *model.Site, delivery *model.Delivery, fileSize int64) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("delivery notification panic", "delivery_id", delivery.ID, "panic", rec)
		}
	}()

	if !h.notifier.Configured() {
		return
	}

	owner, err := h.users.GetByID(site.OwnerID)
	if err != nil || owner == nil {
		h.logger.Error("owner lookup for notification", "site_id", site.ID, "error", err)
		return
	}

	err = h.notifier.SendDeliveryNotification(email.DeliveryNotification{
		SiteName:      site.Name,
		SiteAddress:   site.Address,
		ReferenceCode: site.ReferenceCode,
		PhotoURL:      delivery.PhotoURL,
		CapturedAt:    delivery.CapturedAt,
		FileSize:      fileSize,
		OwnerEmail:    owner.Email,
		CCEmails:      site.NotificationEmails,
	})
	if err != nil {
		h.logger.Error("send delivery notification", "delivery_id", delivery.ID, "error", err)
	}
}
