package model

import "time"

const (
	SiteStatusActive   = "active"
	SiteStatusArchived = "archived"
)

type Site struct {
	ID                 string    `json:"id"`
	OwnerID            string    `json:"owner_id"`
	Name               string    `json:"name"`
	Address            string    `json:"address"`
	Status             string    `json:"status"`
	ReferenceCode      string    `json:"reference_code"`
	CaptureToken       string    `json:"capture_token"`
	ContactName        string    `json:"contact_name,omitempty"`
	ContactPhone       string    `json:"contact_phone,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	NotificationEmails []string  `json:"notification_emails"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}
