// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Recommendation model, the denormalized advice rows derived from each scan.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/healthscan/go-healthscan-backend/internal/domain"
)

// CreateRecommendations inserts one row per analysis item for the given scan.
// Meant to run inside the same transaction that creates the scan, so a failed
// insert rolls the whole write back. A nil/empty item slice is a no-op.
func CreateRecommendations(ctx context.Context, db *gorm.DB, scanID, category string, items []domain.RecommendationItem) ([]domain.Recommendation, error) {
	if len(items) == 0 {
		return nil, nil
	}
	now := time.Now().UTC()
	rows := make([]domain.Recommendation, 0, len(items))
	for _, it := range items {
		p := it.Priority
		if p == "" {
			p = domain.PriorityMedium
		}
		rows = append(rows, domain.Recommendation{
			ID:          uuid.NewString(),
			ScanID:      scanID,
			Category:    category,
			Title:       it.Title,
			Description: it.Description,
			Priority:    p,
			CreatedAt:   now,
		})
	}
	if err := db.WithContext(ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// ListRecentRecommendations returns the latest rows across all scans,
// ordered by creation time descending, capped at limit.
func ListRecentRecommendations(ctx context.Context, db *gorm.DB, limit int) ([]domain.Recommendation, error) {
	var out []domain.Recommendation
	err := db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListRecommendationsByScan returns the rows belonging to one scan, oldest
// first (insertion order for a single write).
func ListRecommendationsByScan(ctx context.Context, db *gorm.DB, scanID string) ([]domain.Recommendation, error) {
	var out []domain.Recommendation
	err := db.WithContext(ctx).
		Where("scan_id = ?", scanID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}
