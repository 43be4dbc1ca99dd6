// file: internals/features/catalog/model/sync_history_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/* =========================================================
   ENUMS
========================================================= */

type SyncEntityType string

const (
	EntityStudent SyncEntityType = "student"
	EntityTeacher SyncEntityType = "teacher"
	EntitySection SyncEntityType = "section"
	EntityTerm    SyncEntityType = "term"
	EntityAdmin   SyncEntityType = "admin"

	// EntityAll dipakai row history incremental (satu run event-driven
	// menyentuh banyak entity type).
	EntityAll SyncEntityType = "all"
)

// SyncEntityOrder: sections butuh student/teacher/term ter-resolve dulu.
var SyncEntityOrder = []SyncEntityType{
	EntityStudent, EntityTeacher, EntityTerm, EntitySection, EntityAdmin,
}

type SyncType string

const (
	SyncTypeFull           SyncType = "full"
	SyncTypeIncremental    SyncType = "incremental"
	SyncTypeReconciliation SyncType = "reconciliation"
)

type SyncStatus string

const (
	SyncStatusInProgress SyncStatus = "in_progress"
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusFailed     SyncStatus = "failed"
)

type ChangeType string

const (
	ChangeCreated  ChangeType = "created"
	ChangeUpdated  ChangeType = "updated"
	ChangeDeleted  ChangeType = "deleted"
	ChangeOrphaned ChangeType = "orphaned"
)

type WarningType string

const (
	WarningSectionDeleted       WarningType = "section_deleted"
	WarningSectionModified      WarningType = "section_modified"
	WarningReconciliationFailed WarningType = "reconciliation_failed"
	WarningDataSkipped          WarningType = "data_skipped"
)

/* =========================================================
   MODEL: sync_histories
   Satu row per entity-type per sync run. Immutable setelah
   end_time terisi (anak append-only: change detail, warning).
========================================================= */

type SyncHistoryModel struct {
	SyncHistoryID       uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:sync_history_id" json:"sync_history_id"`
	SyncHistorySchoolID uuid.UUID      `gorm:"type:uuid;not null;index;column:sync_history_school_id" json:"sync_history_school_id"`
	SyncHistoryEntity   SyncEntityType `gorm:"type:varchar(16);not null;column:sync_history_entity_type" json:"sync_history_entity_type"`
	SyncHistorySyncType SyncType       `gorm:"type:varchar(16);not null;column:sync_history_sync_type" json:"sync_history_sync_type"`

	SyncHistoryStartTime time.Time  `gorm:"type:timestamptz;not null;column:sync_history_start_time" json:"sync_history_start_time"`
	SyncHistoryEndTime   *time.Time `gorm:"type:timestamptz;column:sync_history_end_time" json:"sync_history_end_time,omitempty"`

	SyncHistoryStatus SyncStatus `gorm:"type:varchar(16);not null;default:'in_progress';column:sync_history_status" json:"sync_history_status"`

	SyncHistoryRecordsProcessed int `gorm:"not null;default:0;column:sync_history_records_processed" json:"sync_history_records_processed"`
	SyncHistoryRecordsUpdated   int `gorm:"not null;default:0;column:sync_history_records_updated" json:"sync_history_records_updated"`
	SyncHistoryRecordsFailed    int `gorm:"not null;default:0;column:sync_history_records_failed" json:"sync_history_records_failed"`

	SyncHistoryLastEventID  *string `gorm:"type:varchar(64);column:sync_history_last_event_id" json:"sync_history_last_event_id,omitempty"`
	SyncHistoryErrorMessage *string `gorm:"type:text;column:sync_history_error_message" json:"sync_history_error_message,omitempty"`
}

func (SyncHistoryModel) TableName() string { return "sync_histories" }

/* =========================================================
   MODEL: sync_change_details — audit trail append-only
========================================================= */

type SyncChangeDetailModel struct {
	SyncChangeDetailID     uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:sync_change_detail_id" json:"sync_change_detail_id"`
	SyncChangeDetailSyncID uuid.UUID      `gorm:"type:uuid;not null;index;column:sync_change_detail_sync_id" json:"sync_change_detail_sync_id"`
	SyncChangeDetailEntity SyncEntityType `gorm:"type:varchar(16);not null;column:sync_change_detail_entity_type" json:"sync_change_detail_entity_type"`

	SyncChangeDetailEntityID   string     `gorm:"type:varchar(64);not null;column:sync_change_detail_entity_id" json:"sync_change_detail_entity_id"`
	SyncChangeDetailChangeType ChangeType `gorm:"type:varchar(16);not null;column:sync_change_detail_change_type" json:"sync_change_detail_change_type"`

	SyncChangeDetailFieldsChanged string         `gorm:"type:text;column:sync_change_detail_fields_changed" json:"sync_change_detail_fields_changed"`
	SyncChangeDetailOldValues     datatypes.JSON `gorm:"column:sync_change_detail_old_values" json:"sync_change_detail_old_values,omitempty"`
	SyncChangeDetailNewValues     datatypes.JSON `gorm:"column:sync_change_detail_new_values" json:"sync_change_detail_new_values,omitempty"`

	SyncChangeDetailChangedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime;column:sync_change_detail_changed_at" json:"sync_change_detail_changed_at"`
}

func (SyncChangeDetailModel) TableName() string { return "sync_change_details" }

/* =========================================================
   MODEL: sync_warnings — sinyal non-fatal untuk operator
========================================================= */

type SyncWarningModel struct {
	SyncWarningID     uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:sync_warning_id" json:"sync_warning_id"`
	SyncWarningSyncID uuid.UUID      `gorm:"type:uuid;not null;index;column:sync_warning_sync_id" json:"sync_warning_sync_id"`
	SyncWarningType   WarningType    `gorm:"type:varchar(32);not null;column:sync_warning_type" json:"sync_warning_type"`
	SyncWarningEntity SyncEntityType `gorm:"type:varchar(16);not null;column:sync_warning_entity_type" json:"sync_warning_entity_type"`

	SyncWarningEntityID            string `gorm:"type:varchar(64);not null;column:sync_warning_entity_id" json:"sync_warning_entity_id"`
	SyncWarningMessage             string `gorm:"type:text;not null;column:sync_warning_message" json:"sync_warning_message"`
	SyncWarningAffectedLinkedCount int    `gorm:"not null;default:0;column:sync_warning_affected_linked_count" json:"sync_warning_affected_linked_count"`

	SyncWarningAcknowledged bool `gorm:"not null;default:false;column:sync_warning_acknowledged" json:"sync_warning_acknowledged"`

	SyncWarningCreatedAt time.Time `gorm:"type:timestamptz;not null;default:now();autoCreateTime;column:sync_warning_created_at" json:"sync_warning_created_at"`
}

func (SyncWarningModel) TableName() string { return "sync_warnings" }

func (m *SyncHistoryModel) BeforeCreate(tx *gorm.DB) error {
	if m.SyncHistoryID == uuid.Nil {
		m.SyncHistoryID = uuid.New()
	}
	return nil
}

func (m *SyncChangeDetailModel) BeforeCreate(tx *gorm.DB) error {
	if m.SyncChangeDetailID == uuid.Nil {
		m.SyncChangeDetailID = uuid.New()
	}
	return nil
}

func (m *SyncWarningModel) BeforeCreate(tx *gorm.DB) error {
	if m.SyncWarningID == uuid.Nil {
		m.SyncWarningID = uuid.New()
	}
	return nil
}
