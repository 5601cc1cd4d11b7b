package model

import "time"

// SchemaMigration records an applied migration script. Version is the
// script's filename without the .sql suffix
type SchemaMigration struct {
	Version   string    `gorm:"primaryKey"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}
