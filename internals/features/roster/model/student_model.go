// file: internals/features/roster/model/student_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

/* =========================================================
   MODEL: students (per-tenant)
   Soft delete only — roster tidak pernah hard delete.
========================================================= */

type StudentModel struct {
	StudentID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:student_id" json:"student_id"`
	StudentExternalID string    `gorm:"type:varchar(64);not null;uniqueIndex;column:student_external_id" json:"student_external_id"`

	StudentFirstName string  `gorm:"type:varchar(100);not null;column:student_first_name" json:"student_first_name"`
	StudentLastName  string  `gorm:"type:varchar(100);not null;column:student_last_name" json:"student_last_name"`
	StudentEmail     *string `gorm:"type:varchar(160);column:student_email" json:"student_email,omitempty"`
	StudentGrade     *string `gorm:"type:varchar(16);column:student_grade" json:"student_grade,omitempty"`
	StudentNumber    *string `gorm:"type:varchar(64);column:student_number" json:"student_number,omitempty"`

	StudentLastSyncedAt time.Time `gorm:"type:timestamptz;not null;column:student_last_synced_at" json:"student_last_synced_at"`

	StudentCreatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime;column:student_created_at" json:"student_created_at"`
	StudentUpdatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();autoUpdateTime;column:student_updated_at" json:"student_updated_at"`
	StudentDeletedAt gorm.DeletedAt `gorm:"column:student_deleted_at;index" json:"student_deleted_at,omitempty"`
}

func (StudentModel) TableName() string { return "students" }

/* =========================================================
   MODEL: teachers (per-tenant)
========================================================= */

type TeacherModel struct {
	TeacherID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:teacher_id" json:"teacher_id"`
	TeacherExternalID string    `gorm:"type:varchar(64);not null;uniqueIndex;column:teacher_external_id" json:"teacher_external_id"`

	TeacherFirstName string  `gorm:"type:varchar(100);not null;column:teacher_first_name" json:"teacher_first_name"`
	TeacherLastName  string  `gorm:"type:varchar(100);not null;column:teacher_last_name" json:"teacher_last_name"`
	TeacherEmail     *string `gorm:"type:varchar(160);column:teacher_email" json:"teacher_email,omitempty"`
	TeacherTitle     *string `gorm:"type:varchar(64);column:teacher_title" json:"teacher_title,omitempty"`

	TeacherLastSyncedAt time.Time `gorm:"type:timestamptz;not null;column:teacher_last_synced_at" json:"teacher_last_synced_at"`

	TeacherCreatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime;column:teacher_created_at" json:"teacher_created_at"`
	TeacherUpdatedAt time.Time      `gorm:"type:timestamptz;not null;default:now();autoUpdateTime;column:teacher_updated_at" json:"teacher_updated_at"`
	TeacherDeletedAt gorm.DeletedAt `gorm:"column:teacher_deleted_at;index" json:"teacher_deleted_at,omitempty"`
}

func (TeacherModel) TableName() string { return "teachers" }

func (m *StudentModel) BeforeCreate(tx *gorm.DB) error {
	if m.StudentID == uuid.Nil {
		m.StudentID = uuid.New()
	}
	return nil
}

func (m *TeacherModel) BeforeCreate(tx *gorm.DB) error {
	if m.TeacherID == uuid.Nil {
		m.TeacherID = uuid.New()
	}
	return nil
}
