package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/mlaflamme/proofonsite/internal/model"
)

type DeliveryStore struct {
	db *sql.DB
}

func NewDeliveryStore(db *sql.DB) *DeliveryStore {
	return &DeliveryStore{db: db}
}

func scanDelivery(scanner interface{ Scan(...any) error }) (*model.Delivery, error) {
	var d model.Delivery
	err := scanner.Scan(&d.ID, &d.SiteID, &d.PhotoURL, &d.CapturedAt, &d.Metadata)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

const deliveryCols = `id, site_id, photo_url, captured_at, metadata`

func (s *DeliveryStore) Create(id, siteID, photoURL, metadata string, capturedAt time.Time) (*model.Delivery, error) {
	_, err := s.db.Exec(
		`INSERT INTO deliveries (id, site_id, photo_url, captured_at, metadata) VALUES (?, ?, ?, ?, ?)`,
		id, siteID, photoURL, capturedAt, metadata,
	)
	if err != nil {
		return nil, fmt.Errorf("insert delivery: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+deliveryCols+` FROM deliveries WHERE id = ?`, id)
	return scanDelivery(row)
}

// GetBySite returns the delivery only when it belongs to siteID.
func (s *DeliveryStore) GetBySite(id, siteID string) (*model.Delivery, error) {
	row := s.db.QueryRow(`SELECT `+deliveryCols+` FROM deliveries WHERE id = ? AND site_id = ?`, id, siteID)
	d, err := scanDelivery(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delivery: %w", err)
	}
	return d, nil
}

func (s *DeliveryStore) ListBySite(siteID string, limit int) ([]model.Delivery, error) {
	rows, err := s.db.Query(
		`SELECT `+deliveryCols+` FROM deliveries WHERE site_id = ? ORDER BY captured_at DESC LIMIT ?`,
		siteID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []model.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		deliveries = append(deliveries, *d)
	}
	return deliveries, rows.Err()
}

func (s *DeliveryStore) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM deliveries WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete delivery: %w", err)
	}
	return nil
}
