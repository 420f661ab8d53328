package domain

import "time"

// Idempotency represents a recorded result of a previously processed
// analyze-image request, keyed by (user_id, kind, key). It enables safe
// retries from the camera client by returning the originally produced scan
// without re-running inference or writing a duplicate row.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_kind_key,priority:1"`
	Kind      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_kind_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_kind_key,priority:3"`
	ScanID    string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
