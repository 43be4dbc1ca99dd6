// file: internals/features/roster/model/term_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/* =========================================================
   MODEL: terms (per-tenant)
   Term manual dibuat operator, di-skip orphan detection.
========================================================= */

type TermModel struct {
	TermID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:term_id" json:"term_id"`
	TermExternalID string    `gorm:"type:varchar(64);not null;uniqueIndex;column:term_external_id" json:"term_external_id"`

	TermName      string    `gorm:"type:varchar(160);not null;column:term_name" json:"term_name"`
	TermStartDate time.Time `gorm:"type:date;not null;column:term_start_date" json:"term_start_date"`
	TermEndDate   time.Time `gorm:"type:date;not null;column:term_end_date" json:"term_end_date"`

	TermIsManual bool `gorm:"not null;default:false;column:term_is_manual" json:"term_is_manual"`

	TermLastSyncedAt time.Time `gorm:"type:timestamptz;not null;column:term_last_synced_at" json:"term_last_synced_at"`

	TermCreatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime;column:term_created_at" json:"term_created_at"`
	TermUpdatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();autoUpdateTime;column:term_updated_at" json:"term_updated_at"`
	TermDeletedAt gorm.DeletedAt `gorm:"column:term_deleted_at;index" json:"term_deleted_at,omitempty"`
}

func (TermModel) TableName() string { return "terms" }

/* =========================================================
   MODEL: school_admins (per-tenant)
   Akun dengan auth source eksternal tidak pernah disentuh
   sync (bypass account).
========================================================= */

type AdminAuthSource string

const (
	AdminAuthSIS      AdminAuthSource = "sis"
	AdminAuthExternal AdminAuthSource = "external"
)

type SchoolAdminModel struct {
	SchoolAdminID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:school_admin_id" json:"school_admin_id"`
	SchoolAdminExternalID string    `gorm:"type:varchar(64);not null;uniqueIndex;column:school_admin_external_id" json:"school_admin_external_id"`

	SchoolAdminFirstName string  `gorm:"type:varchar(100);not null;column:school_admin_first_name" json:"school_admin_first_name"`
	SchoolAdminLastName  string  `gorm:"type:varchar(100);not null;column:school_admin_last_name" json:"school_admin_last_name"`
	SchoolAdminEmail     *string `gorm:"type:varchar(160);column:school_admin_email" json:"school_admin_email,omitempty"`

	SchoolAdminAuthSource AdminAuthSource `gorm:"type:varchar(16);not null;default:'sis';column:school_admin_auth_source" json:"school_admin_auth_source"`

	SchoolAdminCreatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime;column:school_admin_created_at" json:"school_admin_created_at"`
	SchoolAdminUpdatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();autoUpdateTime;column:school_admin_updated_at" json:"school_admin_updated_at"`
	SchoolAdminDeletedAt gorm.DeletedAt `gorm:"column:school_admin_deleted_at;index" json:"school_admin_deleted_at,omitempty"`
}

func (SchoolAdminModel) TableName() string { return "school_admins" }

func (m *TermModel) BeforeCreate(tx *gorm.DB) error {
	if m.TermID == uuid.Nil {
		m.TermID = uuid.New()
	}
	return nil
}

func (m *SchoolAdminModel) BeforeCreate(tx *gorm.DB) error {
	if m.SchoolAdminID == uuid.Nil {
		m.SchoolAdminID = uuid.New()
	}
	return nil
}
