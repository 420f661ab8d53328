// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Scan model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a scan is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// This repository is designed to be wrapped by a higher-level service
// (see services.ScanService) which enforces validation, inference dispatch,
// and cross-aggregate behavior.
package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/healthscan/go-healthscan-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateScan inserts the given scan, assigning a UUID primary key and UTC
// creation timestamp. The Label column is populated from the analysis when
// the caller has not set it, keeping the trend lookup consistent no matter
// who builds the record.
func CreateScan(ctx context.Context, db *gorm.DB, s *domain.Scan) (*domain.Scan, error) {
	s.ID = uuid.NewString()
	s.CreatedAt = time.Now().UTC()
	if s.Label == "" {
		s.Label = s.Analysis.Label
	}
	if err := db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

// ListScans returns all scans belonging to userID, ordered by creation time
// descending (most recent first). It returns an empty slice if the user has
// no scans. On DB error, it returns the error.
func ListScans(ctx context.Context, db *gorm.DB, userID string) ([]domain.Scan, error) {
	var out []domain.Scan
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountScans returns the total number of scans owned by userID.
func CountScans(ctx context.Context, db *gorm.DB, userID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Scan{}).
		Where("user_id = ?", userID).
		Count(&total).Error
	return total, err
}

// ListScansPage returns a paginated slice of scans for userID, ordered by
// creation time descending. Use CountScans to obtain the total for pagination
// metadata.
//
// The caller is responsible for computing offset and limit (e.g., (page-1)*pageSize).
func ListScansPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.Scan, error) {
	var out []domain.Scan
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// GetScan fetches a single scan by its ID. If the record does not exist, it
// returns ErrNotFound. On other DB errors, the raw error is returned.
func GetScan(ctx context.Context, db *gorm.DB, id string) (*domain.Scan, error) {
	var s domain.Scan
	err := db.WithContext(ctx).
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateScanFields applies a partial update to the scan identified by id.
// Only the provided columns change; ID and CreatedAt are never touched.
// If no rows are affected (scan missing), it returns ErrNotFound.
func UpdateScanFields(ctx context.Context, db *gorm.DB, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	delete(fields, "id")
	delete(fields, "created_at")
	res := db.WithContext(ctx).
		Model(&domain.Scan{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LatestConfidence returns the confidence of the most recent scan a user has
// for the given condition label, or nil when no prior scan exists. It feeds
// the trend line of the narration report.
//
// The match runs on the dedicated, indexed Label column written at create
// time. Matching inside the serialized analysis would break on labels that
// json.Marshal escapes (an ampersand is stored as the sequence backslash
// u0026) or that contain SQL LIKE metacharacters.
func LatestConfidence(ctx context.Context, db *gorm.DB, userID, label string) (*int, error) {
	var row struct {
		Confidence int
	}
	err := db.WithContext(ctx).
		Model(&domain.Scan{}).
		Select("confidence").
		Where("user_id = ? AND label = ?", userID, label).
		Order("created_at desc").
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c := row.Confidence
	return &c, nil
}
