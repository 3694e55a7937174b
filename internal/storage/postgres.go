package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/linkcut/linkcut/internal/database"
	"github.com/linkcut/linkcut/internal/models"
)

type PostgresStorage struct {
	db *database.DB
}

func NewPostgresStorage(db *database.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) SaveLink(ctx context.Context, link *models.ShortLink) error {
	var utm []byte
	if link.UTMParameters != nil {
		var err error
		utm, err = json.Marshal(link.UTMParameters)
		if err != nil {
			return fmt.Errorf("failed to encode utm parameters: %w", err)
		}
	}

	query := `
		INSERT INTO shortened_urls (id, original_url, slug, expires_at, click_count, utm_parameters, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.db.Write().Exec(ctx, query,
		link.ID,
		link.OriginalURL,
		link.Slug,
		link.ExpiresAt,
		link.ClickCount,
		utm,
		link.CreatedAt,
		link.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrDuplicateSlug
		}
		return fmt.Errorf("failed to save link: %w", err)
	}

	return nil
}

func (s *PostgresStorage) GetLinkBySlug(ctx context.Context, slug string) (*models.ShortLink, error) {
	query := `
		SELECT id, original_url, slug, expires_at, click_count, last_accessed_at, utm_parameters, created_at, updated_at
		FROM shortened_urls
		WHERE slug = $1
	`

	var link models.ShortLink
	var utm []byte
	err := s.db.Read().QueryRow(ctx, query, slug).Scan(
		&link.ID,
		&link.OriginalURL,
		&link.Slug,
		&link.ExpiresAt,
		&link.ClickCount,
		&link.LastAccessedAt,
		&utm,
		&link.CreatedAt,
		&link.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	if len(utm) > 0 {
		link.UTMParameters = &models.UTMParameters{}
		if err := json.Unmarshal(utm, link.UTMParameters); err != nil {
			return nil, fmt.Errorf("failed to decode utm parameters: %w", err)
		}
	}

	return &link, nil
}

func (s *PostgresStorage) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM shortened_urls WHERE slug = $1)`
	// The existence check before an insert must see the freshest state, so
	// it goes to the primary.
	err := s.db.Write().QueryRow(ctx, query, slug).Scan(&exists)
	return exists, err
}

func (s *PostgresStorage) RecordHit(ctx context.Context, slug string, at time.Time) error {
	query := `
		UPDATE shortened_urls
		SET click_count = click_count + 1,
			last_accessed_at = $2,
			updated_at = NOW()
		WHERE slug = $1
	`

	cmdTag, err := s.db.Write().Exec(ctx, query, slug, at)
	if err != nil {
		return fmt.Errorf("failed to record hit: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("link with slug %s not found", slug)
	}

	return nil
}

func (s *PostgresStorage) SaveClick(ctx context.Context, ev *models.ClickEvent) error {
	query := `
		INSERT INTO link_clicks (id, short_link_id, clicked_at, ip_address, user_agent, referer,
			browser, browser_version, os, os_version, device, is_mobile, is_bot)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := s.db.Write().Exec(ctx, query,
		ev.ID,
		ev.ShortLinkID,
		ev.Timestamp,
		ev.IPAddress,
		ev.UserAgent,
		ev.Referer,
		ev.Browser,
		ev.BrowserVersion,
		ev.OS,
		ev.OSVersion,
		ev.Device,
		ev.IsMobile,
		ev.IsBot,
	)

	if err != nil {
		return fmt.Errorf("failed to save click: %w", err)
	}

	return nil
}

func (s *PostgresStorage) ListClicks(ctx context.Context, shortLinkID string) ([]*models.ClickEvent, error) {
	query := `
		SELECT id, short_link_id, clicked_at, ip_address, user_agent, referer,
			browser, browser_version, os, os_version, device, is_mobile, is_bot
		FROM link_clicks
		WHERE short_link_id = $1
		ORDER BY clicked_at ASC
	`

	rows, err := s.db.Read().Query(ctx, query, shortLinkID)
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks: %w", err)
	}
	defer rows.Close()

	var events []*models.ClickEvent
	for rows.Next() {
		var ev models.ClickEvent
		err := rows.Scan(
			&ev.ID,
			&ev.ShortLinkID,
			&ev.Timestamp,
			&ev.IPAddress,
			&ev.UserAgent,
			&ev.Referer,
			&ev.Browser,
			&ev.BrowserVersion,
			&ev.OS,
			&ev.OSVersion,
			&ev.Device,
			&ev.IsMobile,
			&ev.IsBot,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan click row: %w", err)
		}
		events = append(events, &ev)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating click rows: %w", err)
	}

	return events, nil
}
