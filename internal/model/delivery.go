package model

import "time"

type Delivery struct {
	ID         string    `json:"id"`
	SiteID     string    `json:"site_id"`
	PhotoURL   string    `json:"photo_url"`
	CapturedAt time.Time `json:"captured_at"`
	Metadata   string    `json:"-"`
}

// DeliveryMetadata is the JSON document stored in the deliveries.metadata
// column. It is opaque to the schema so new fields can be added freely.
type DeliveryMetadata struct {
	FileSize         int64  `json:"file_size"`
	MimeType         string `json:"mime_type"`
	OriginalFileName string `json:"original_file_name,omitempty"`
}
