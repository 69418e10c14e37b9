package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/filevault/fv-registry/internal/store/schema"
)

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// Migrate creates or updates the registry tables
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&schema.Grant{},
		&schema.MetaTxRequest{},
		&schema.Anchor{},
		&schema.Event{},
		&schema.KeyValueStore{},
	)
}

// ConfigureConnectionPool configures the connection pool settings for a GORM
// database connection. Zero values fall back to safe defaults.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}
	// database/sql treats MaxIdleConns above MaxOpenConns as MaxOpenConns,
	// clamp explicitly to keep the logged numbers honest
	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// CreateGrant inserts a pending grant record
func (s *pgStore) CreateGrant(ctx context.Context, input CreateGrantInput) (bool, error) {
	grant := schema.Grant{
		CapID:        input.CapID,
		FileID:       input.FileID,
		GrantorID:    input.GrantorID,
		GranteeID:    input.GranteeID,
		ExpiresAt:    input.ExpiresAt,
		MaxDownloads: input.MaxDownloads,
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cap_id"}},
			DoNothing: true,
		}).
		Create(&grant)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create grant: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// GetGrant retrieves a grant by capability id
func (s *pgStore) GetGrant(ctx context.Context, capID string) (*schema.Grant, error) {
	var grant schema.Grant
	err := s.db.WithContext(ctx).Where("cap_id = ?", capID).First(&grant).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get grant: %w", err)
	}
	return &grant, nil
}

// GrantExists reports whether a grant row exists for the capability id
func (s *pgStore) GrantExists(ctx context.Context, capID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.Grant{}).
		Where("cap_id = ?", capID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check grant existence: %w", err)
	}
	return count > 0, nil
}

// MarkGrantConfirmed records that the granting transaction was mined
func (s *pgStore) MarkGrantConfirmed(ctx context.Context, capID string, txHash string) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Grant{}).
		Where("cap_id = ?", capID).
		Updates(map[string]interface{}{
			"confirmed":  true,
			"tx_hash":    txHash,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark grant confirmed: %w", err)
	}
	return nil
}

// MirrorGrantUsage updates the best-effort mirror of on-chain usage
func (s *pgStore) MirrorGrantUsage(ctx context.Context, capID string, usedDownloads uint64, revokedAt *time.Time) error {
	updates := map[string]interface{}{
		"used_downloads": usedDownloads,
		"updated_at":     time.Now().UTC(),
	}
	if revokedAt != nil {
		updates["revoked_at"] = *revokedAt
	}

	err := s.db.WithContext(ctx).
		Model(&schema.Grant{}).
		Where("cap_id = ?", capID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to mirror grant usage: %w", err)
	}
	return nil
}

// CreateMetaTxRequest inserts a queued relay request
func (s *pgStore) CreateMetaTxRequest(ctx context.Context, input CreateMetaTxRequestInput) (bool, error) {
	request := schema.MetaTxRequest{
		RequestID: input.RequestID,
		TypedData: input.TypedData,
		Signature: input.Signature,
		Status:    schema.MetaTxStatusQueued,
		TaskID:    input.TaskID,
	}

	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "request_id"}},
			DoNothing: true,
		}).
		Create(&request)
	if result.Error != nil {
		return false, fmt.Errorf("failed to create meta-tx request: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

// GetMetaTxRequest retrieves a relay request by id
func (s *pgStore) GetMetaTxRequest(ctx context.Context, requestID string) (*schema.MetaTxRequest, error) {
	var request schema.MetaTxRequest
	err := s.db.WithContext(ctx).Where("request_id = ?", requestID).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get meta-tx request: %w", err)
	}
	return &request, nil
}

// ClaimMetaTxRequest is the compare-and-swap on the queued -> sent edge. The
// update matches a queued row, or a sent row abandoned longer than staleAfter
// ago, so concurrent drivers of the same request id resolve to one winner.
func (s *pgStore) ClaimMetaTxRequest(ctx context.Context, requestID string, staleAfter time.Duration) (bool, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)

	result := s.db.WithContext(ctx).
		Model(&schema.MetaTxRequest{}).
		Where("request_id = ? AND (status = ? OR (status = ? AND updated_at < ?))",
			requestID, schema.MetaTxStatusQueued, schema.MetaTxStatusSent, cutoff).
		Updates(map[string]interface{}{
			"status":     schema.MetaTxStatusSent,
			"attempts":   gorm.Expr("attempts + 1"),
			"updated_at": time.Now().UTC(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to claim meta-tx request: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// MarkMetaTxMined transitions sent -> mined with the transaction hash
func (s *pgStore) MarkMetaTxMined(ctx context.Context, requestID string, txHash string) error {
	err := s.db.WithContext(ctx).
		Model(&schema.MetaTxRequest{}).
		Where("request_id = ? AND status <> ?", requestID, schema.MetaTxStatusMined).
		Updates(map[string]interface{}{
			"status":     schema.MetaTxStatusMined,
			"tx_hash":    txHash,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark meta-tx mined: %w", err)
	}
	return nil
}

// MarkMetaTxFailed transitions queued|sent -> failed with the last error
func (s *pgStore) MarkMetaTxFailed(ctx context.Context, requestID string, lastError string) error {
	err := s.db.WithContext(ctx).
		Model(&schema.MetaTxRequest{}).
		Where("request_id = ? AND status <> ?", requestID, schema.MetaTxStatusMined).
		Updates(map[string]interface{}{
			"status":     schema.MetaTxStatusFailed,
			"last_error": lastError,
			"updated_at": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("failed to mark meta-tx failed: %w", err)
	}
	return nil
}

// ListRequeueableMetaTxRequests returns queued and sent rows older than the
// staleness cutoff. Fresh queued rows are excluded: those still belong to the
// pool of the instance that accepted them.
func (s *pgStore) ListRequeueableMetaTxRequests(ctx context.Context, staleAfter time.Duration, limit int) ([]schema.MetaTxRequest, error) {
	cutoff := time.Now().UTC().Add(-staleAfter)

	var requests []schema.MetaTxRequest
	err := s.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?",
			[]schema.MetaTxStatus{schema.MetaTxStatusQueued, schema.MetaTxStatusSent}, cutoff).
		Order("updated_at ASC").
		Limit(limit).
		Find(&requests).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list requeueable meta-tx requests: %w", err)
	}
	return requests, nil
}

// CreateAnchor inserts an anchor for a period, returning the existing row
// unchanged when one is already present
func (s *pgStore) CreateAnchor(ctx context.Context, anchor schema.Anchor) (*schema.Anchor, error) {
	result := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "period_id"}},
			DoNothing: true,
		}).
		Create(&anchor)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to create anchor: %w", result.Error)
	}

	if result.RowsAffected == 0 {
		// Lost the insert race or the anchor predates this call; either way
		// the stored row is the authoritative one
		return s.GetAnchor(ctx, anchor.PeriodID)
	}
	return &anchor, nil
}

// GetAnchor retrieves an anchor by period id
func (s *pgStore) GetAnchor(ctx context.Context, periodID int64) (*schema.Anchor, error) {
	var anchor schema.Anchor
	err := s.db.WithContext(ctx).Where("period_id = ?", periodID).First(&anchor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get anchor: %w", err)
	}
	return &anchor, nil
}

// GetLatestAnchor retrieves the anchor with the highest period id
func (s *pgStore) GetLatestAnchor(ctx context.Context) (*schema.Anchor, error) {
	var anchor schema.Anchor
	err := s.db.WithContext(ctx).Order("period_id DESC").First(&anchor).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest anchor: %w", err)
	}
	return &anchor, nil
}

// AttachAnchorTxHash fills in the anchoring transaction hash once
func (s *pgStore) AttachAnchorTxHash(ctx context.Context, periodID int64, txHash string) error {
	err := s.db.WithContext(ctx).
		Model(&schema.Anchor{}).
		Where("period_id = ? AND tx_hash IS NULL", periodID).
		Update("tx_hash", txHash).Error
	if err != nil {
		return fmt.Errorf("failed to attach anchor tx hash: %w", err)
	}
	return nil
}

// CreateEvent appends a domain event
func (s *pgStore) CreateEvent(ctx context.Context, input CreateEventInput) (*schema.Event, error) {
	event := schema.Event{
		Type:        input.Type,
		PeriodID:    input.PeriodID,
		FileID:      input.FileID,
		UserID:      input.UserID,
		PayloadHash: input.PayloadHash,
		Timestamp:   input.Timestamp,
	}

	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return &event, nil
}

// ListEventsByPeriod returns a period's events ordered by id
func (s *pgStore) ListEventsByPeriod(ctx context.Context, periodID int64) ([]schema.Event, error) {
	var events []schema.Event
	err := s.db.WithContext(ctx).
		Where("period_id = ?", periodID).
		Order("id ASC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list events for period: %w", err)
	}
	return events, nil
}

// CountEventsByPeriod returns the number of events in a period
func (s *pgStore) CountEventsByPeriod(ctx context.Context, periodID int64) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.Event{}).
		Where("period_id = ?", periodID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count events for period: %w", err)
	}
	return count, nil
}

// GetValue retrieves a value from the key-value store
func (s *pgStore) GetValue(ctx context.Context, key string) (string, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get value: %w", err)
	}
	return kv.Value, nil
}

// SetValue upserts a value in the key-value store
func (s *pgStore) SetValue(ctx context.Context, key string, value string) error {
	kv := schema.KeyValueStore{Key: key, Value: value}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set value: %w", err)
	}
	return nil
}
