package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mlaflamme/proofonsite/internal/model"
)

type SiteStore struct {
	db *sql.DB
}

func NewSiteStore(db *sql.DB) *SiteStore {
	return &SiteStore{db: db}
}

func scanSite(scanner interface{ Scan(...any) error }) (*model.Site, error) {
	var site model.Site
	var emails string
	err := scanner.Scan(
		&site.ID, &site.OwnerID, &site.Name, &site.Address, &site.Status,
		&site.ReferenceCode, &site.CaptureToken,
		&site.ContactName, &site.ContactPhone, &site.Notes,
		&emails, &site.CreatedAt, &site.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(emails), &site.NotificationEmails); err != nil {
		return nil, fmt.Errorf("decode notification emails: %w", err)
	}
	if site.NotificationEmails == nil {
		site.NotificationEmails = []string{}
	}
	return &site, nil
}

const siteCols = `id, owner_id, name, address, status, reference_code, capture_token, contact_name, contact_phone, notes, notification_emails, created_at, updated_at`

func encodeEmails(emails []string) (string, error) {
	if emails == nil {
		emails = []string{}
	}
	data, err := json.Marshal(emails)
	if err != nil {
		return "", fmt.Errorf("encode notification emails: %w", err)
	}
	return string(data), nil
}

func (s *SiteStore) Create(site *model.Site) (*model.Site, error) {
	emails, err := encodeEmails(site.NotificationEmails)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	_, err = s.db.Exec(
		`INSERT INTO sites (id, owner_id, name, address, status, reference_code, capture_token, contact_name, contact_phone, notes, notification_emails, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		site.ID, site.OwnerID, site.Name, site.Address, site.Status,
		site.ReferenceCode, site.CaptureToken,
		site.ContactName, site.ContactPhone, site.Notes,
		emails, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert site: %w", err)
	}
	return s.GetByID(site.ID)
}

func (s *SiteStore) GetByID(id string) (*model.Site, error) {
	row := s.db.QueryRow(`SELECT `+siteCols+` FROM sites WHERE id = ?`, id)
	site, err := scanSite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get site: %w", err)
	}
	return site, nil
}

// GetByIDForOwner returns the site only when it belongs to ownerID, so a
// foreign site and a missing site are indistinguishable to the caller.
func (s *SiteStore) GetByIDForOwner(id, ownerID string) (*model.Site, error) {
	row := s.db.QueryRow(`SELECT `+siteCols+` FROM sites WHERE id = ? AND owner_id = ?`, id, ownerID)
	site, err := scanSite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get site for owner: %w", err)
	}
	return site, nil
}

func (s *SiteStore) GetByCaptureToken(token string) (*model.Site, error) {
	row := s.db.QueryRow(`SELECT `+siteCols+` FROM sites WHERE capture_token = ?`, token)
	site, err := scanSite(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get site by capture token: %w", err)
	}
	return site, nil
}

func (s *SiteStore) ReferenceCodeExists(code string) (bool, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM sites WHERE reference_code = ?`, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check reference code: %w", err)
	}
	return n > 0, nil
}

func (s *SiteStore) ListByOwner(ownerID string) ([]model.Site, error) {
	rows, err := s.db.Query(`SELECT `+siteCols+` FROM sites WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var sites []model.Site
	for rows.Next() {
		site, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, *site)
	}
	return sites, rows.Err()
}

// Update rewrites the mutable fields of an owned site. Returns nil when the
// site does not exist or is not owned by ownerID.
func (s *SiteStore) Update(id, ownerID string, site *model.Site) (*model.Site, error) {
	emails, err := encodeEmails(site.NotificationEmails)
	if err != nil {
		return nil, err
	}
	result, err := s.db.Exec(
		`UPDATE sites SET name = ?, address = ?, status = ?, contact_name = ?, contact_phone = ?, notes = ?, notification_emails = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		site.Name, site.Address, site.Status,
		site.ContactName, site.ContactPhone, site.Notes,
		emails, time.Now().UTC(), id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("update site: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}
	return s.GetByID(id)
}

func (s *SiteStore) Delete(id, ownerID string) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM sites WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("delete site: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}
