// file: internals/features/catalog/model/district_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/* =========================================================
   MODEL: districts (catalog)
========================================================= */

type DistrictModel struct {
	DistrictID           uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:district_id" json:"district_id"`
	DistrictExternalID   string    `gorm:"type:varchar(64);not null;uniqueIndex;column:district_external_id" json:"district_external_id"`
	DistrictName         string    `gorm:"type:varchar(160);not null;column:district_name" json:"district_name"`
	DistrictSecretPrefix string    `gorm:"type:varchar(64);not null;column:district_secret_prefix" json:"district_secret_prefix"`
	DistrictTimeZone     string    `gorm:"type:varchar(64);not null;default:'America/New_York';column:district_time_zone" json:"district_time_zone"`

	DistrictCreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime;column:district_created_at" json:"district_created_at"`
	DistrictUpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime;column:district_updated_at" json:"district_updated_at"`
}

func (DistrictModel) TableName() string { return "districts" }

/* =========================================================
   MODEL: schools (catalog) — satu database per school
========================================================= */

type SchoolModel struct {
	SchoolID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:school_id" json:"school_id"`
	SchoolDistrictID uuid.UUID `gorm:"type:uuid;not null;index;column:school_district_id" json:"school_district_id"`

	SchoolExternalID  string `gorm:"type:varchar(64);not null;uniqueIndex;column:school_external_id" json:"school_external_id"`
	SchoolName        string `gorm:"type:varchar(160);not null;column:school_name" json:"school_name"`
	SchoolDatabaseRef string `gorm:"type:varchar(64);not null;column:school_database_ref" json:"school_database_ref"`

	SchoolIsActive bool `gorm:"not null;default:true;column:school_is_active" json:"school_is_active"`

	// one-shot: diset operator atau first-ever-sync detection, dihapus setelah full sync sukses
	SchoolRequiresFullSync bool `gorm:"not null;default:true;column:school_requires_full_sync" json:"school_requires_full_sync"`

	SchoolCreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime;column:school_created_at" json:"school_created_at"`
	SchoolUpdatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoUpdateTime;column:school_updated_at" json:"school_updated_at"`
}

func (SchoolModel) TableName() string { return "schools" }

func (m *DistrictModel) BeforeCreate(tx *gorm.DB) error {
	if m.DistrictID == uuid.Nil {
		m.DistrictID = uuid.New()
	}
	return nil
}

func (m *SchoolModel) BeforeCreate(tx *gorm.DB) error {
	if m.SchoolID == uuid.Nil {
		m.SchoolID = uuid.New()
	}
	return nil
}
