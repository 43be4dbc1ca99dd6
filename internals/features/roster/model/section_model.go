// file: internals/features/roster/model/section_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/* =========================================================
   MODEL: sections + junction teacher/student (per-tenant)
========================================================= */

type SectionModel struct {
	SectionID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:section_id" json:"section_id"`
	SectionExternalID string    `gorm:"type:varchar(64);not null;uniqueIndex;column:section_external_id" json:"section_external_id"`

	SectionName    string  `gorm:"type:varchar(160);not null;column:section_name" json:"section_name"`
	SectionPeriod  *string `gorm:"type:varchar(32);column:section_period" json:"section_period,omitempty"`
	SectionSubject *string `gorm:"type:varchar(64);column:section_subject" json:"section_subject,omitempty"`

	// FK eksplisit, di-resolve dari term external id saat upsert
	SectionTermID *uuid.UUID `gorm:"type:uuid;index;column:section_term_id" json:"section_term_id,omitempty"`

	SectionLastSyncedAt        time.Time  `gorm:"type:timestamptz;not null;column:section_last_synced_at" json:"section_last_synced_at"`
	SectionLastEventReceivedAt *time.Time `gorm:"type:timestamptz;column:section_last_event_received_at" json:"section_last_event_received_at,omitempty"`

	SectionCreatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime;column:section_created_at" json:"section_created_at"`
	SectionUpdatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();autoUpdateTime;column:section_updated_at" json:"section_updated_at"`
	SectionDeletedAt gorm.DeletedAt `gorm:"column:section_deleted_at;index" json:"section_deleted_at,omitempty"`
}

func (SectionModel) TableName() string { return "sections" }

type TeacherSectionModel struct {
	TeacherSectionID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:teacher_section_id" json:"teacher_section_id"`
	TeacherSectionSectionID uuid.UUID `gorm:"type:uuid;not null;index:idx_teacher_section,unique;column:teacher_section_section_id" json:"teacher_section_section_id"`
	TeacherSectionTeacherID uuid.UUID `gorm:"type:uuid;not null;index:idx_teacher_section,unique;column:teacher_section_teacher_id" json:"teacher_section_teacher_id"`
}

func (TeacherSectionModel) TableName() string { return "teacher_sections" }

type StudentSectionModel struct {
	StudentSectionID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:student_section_id" json:"student_section_id"`
	StudentSectionSectionID uuid.UUID `gorm:"type:uuid;not null;index:idx_student_section,unique;column:student_section_section_id" json:"student_section_section_id"`
	StudentSectionStudentID uuid.UUID `gorm:"type:uuid;not null;index:idx_student_section,unique;column:student_section_student_id" json:"student_section_student_id"`
}

func (StudentSectionModel) TableName() string { return "student_sections" }

/* =========================================================
   MODEL: workshops + workshop_sections
   Keberadaan row workshop_sections = section dilindungi
   dari delete destruktif (dipakai subsistem penjadwalan).
========================================================= */

type WorkshopModel struct {
	WorkshopID   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:workshop_id" json:"workshop_id"`
	WorkshopName string    `gorm:"type:varchar(160);not null;column:workshop_name" json:"workshop_name"`

	WorkshopCreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime;column:workshop_created_at" json:"workshop_created_at"`
}

func (WorkshopModel) TableName() string { return "workshops" }

type WorkshopSectionModel struct {
	WorkshopSectionID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:workshop_section_id" json:"workshop_section_id"`
	WorkshopSectionWorkshopID uuid.UUID `gorm:"type:uuid;not null;index:idx_workshop_section,unique;column:workshop_section_workshop_id" json:"workshop_section_workshop_id"`
	WorkshopSectionSectionID  uuid.UUID `gorm:"type:uuid;not null;index:idx_workshop_section,unique;column:workshop_section_section_id" json:"workshop_section_section_id"`
}

func (WorkshopSectionModel) TableName() string { return "workshop_sections" }

/* ===== app-side UUID (fallback kalau DB default tidak jalan) ===== */

func (m *SectionModel) BeforeCreate(tx *gorm.DB) error {
	if m.SectionID == uuid.Nil {
		m.SectionID = uuid.New()
	}
	return nil
}

func (m *TeacherSectionModel) BeforeCreate(tx *gorm.DB) error {
	if m.TeacherSectionID == uuid.Nil {
		m.TeacherSectionID = uuid.New()
	}
	return nil
}

func (m *StudentSectionModel) BeforeCreate(tx *gorm.DB) error {
	if m.StudentSectionID == uuid.Nil {
		m.StudentSectionID = uuid.New()
	}
	return nil
}

func (m *WorkshopModel) BeforeCreate(tx *gorm.DB) error {
	if m.WorkshopID == uuid.Nil {
		m.WorkshopID = uuid.New()
	}
	return nil
}

func (m *WorkshopSectionModel) BeforeCreate(tx *gorm.DB) error {
	if m.WorkshopSectionID == uuid.Nil {
		m.WorkshopSectionID = uuid.New()
	}
	return nil
}
