package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alextreichler/luxestore/internal/models"
)

const siteSettingsID = "site"

func (s *SQLiteStore) GetSettings(ctx context.Context) (models.SiteSettings, error) {
	settings := models.DefaultSiteSettings()

	var data string
	err := s.DB.QueryRowContext(ctx, `SELECT data FROM settings WHERE id = ?`, siteSettingsID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("failed to load settings: %w", err)
	}
	// Saved keys win, missing ones keep their default.
	if err := json.Unmarshal([]byte(data), &settings); err != nil {
		return models.DefaultSiteSettings(), fmt.Errorf("failed to decode settings: %w", err)
	}
	if settings.PaymentMethods == nil {
		settings.PaymentMethods = []models.PaymentMethod{}
	}
	return settings, nil
}

func (s *SQLiteStore) SaveSettings(ctx context.Context, settings models.SiteSettings) error {
	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	query := `
		INSERT INTO settings (id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
	`
	if _, err := s.DB.ExecContext(ctx, query, siteSettingsID, string(data), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
