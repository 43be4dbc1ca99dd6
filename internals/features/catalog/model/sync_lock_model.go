// file: internals/features/catalog/model/sync_lock_model.go
package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

/* =========================================================
   MODEL: sync_locks
   Satu row aktif per scope. Keberadaan row + expires_at di
   masa depan = lock dipegang. Scope: "school:<id>",
   "district:<id>", atau "global".
========================================================= */

type SyncLockModel struct {
	SyncLockScope string    `gorm:"type:varchar(96);primaryKey;column:sync_lock_scope" json:"sync_lock_scope"`
	SyncLockID    uuid.UUID `gorm:"type:uuid;not null;column:sync_lock_id" json:"sync_lock_id"`

	SyncLockAcquiredBy  string  `gorm:"type:varchar(128);not null;column:sync_lock_acquired_by" json:"sync_lock_acquired_by"`
	SyncLockInitiatedBy *string `gorm:"type:varchar(128);column:sync_lock_initiated_by" json:"sync_lock_initiated_by,omitempty"`
	SyncLockMachineName string  `gorm:"type:varchar(128);not null;column:sync_lock_machine_name" json:"sync_lock_machine_name"`

	SyncLockAcquiredAt    time.Time `gorm:"type:timestamptz;not null;column:sync_lock_acquired_at" json:"sync_lock_acquired_at"`
	SyncLockExpiresAt     time.Time `gorm:"type:timestamptz;not null;column:sync_lock_expires_at" json:"sync_lock_expires_at"`
	SyncLockLastHeartbeat time.Time `gorm:"type:timestamptz;not null;column:sync_lock_last_heartbeat" json:"sync_lock_last_heartbeat"`
}

func (SyncLockModel) TableName() string { return "sync_locks" }

/* =========================================================
   MODEL: sync_schedules — trigger harian per district,
   jam/menit dalam timezone lokal district.
========================================================= */

type SyncScheduleModel struct {
	SyncScheduleID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:sync_schedule_id" json:"sync_schedule_id"`
	SyncScheduleDistrictID uuid.UUID `gorm:"type:uuid;not null;index;column:sync_schedule_district_id" json:"sync_schedule_district_id"`

	SyncScheduleLocalHour   int `gorm:"not null;column:sync_schedule_local_hour" json:"sync_schedule_local_hour"`
	SyncScheduleLocalMinute int `gorm:"not null;column:sync_schedule_local_minute" json:"sync_schedule_local_minute"`

	// array int 0..6 (Minggu=0), JSON
	SyncScheduleDaysOfWeek datatypes.JSON `gorm:"column:sync_schedule_days_of_week" json:"sync_schedule_days_of_week"`

	SyncScheduleEnabled          bool       `gorm:"not null;default:true;column:sync_schedule_enabled" json:"sync_schedule_enabled"`
	SyncScheduleLastTriggeredUtc *time.Time `gorm:"type:timestamptz;column:sync_schedule_last_triggered_utc" json:"sync_schedule_last_triggered_utc,omitempty"`
}

func (SyncScheduleModel) TableName() string { return "sync_schedules" }

/* =========================================================
   MODEL: events_logs — snapshot diagnostik stream event
   upstream. Bukan sumber kebenaran, hanya observability.
========================================================= */

type EventsLogModel struct {
	EventsLogID            uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey;column:events_log_id" json:"events_log_id"`
	EventsLogSchoolID      uuid.UUID      `gorm:"type:uuid;not null;index;column:events_log_school_id" json:"events_log_school_id"`
	EventsLogCheckedAt     time.Time      `gorm:"type:timestamptz;not null;default:now();autoCreateTime;column:events_log_checked_at" json:"events_log_checked_at"`
	EventsLogAPIAccessible bool           `gorm:"not null;column:events_log_api_accessible" json:"events_log_api_accessible"`
	EventsLogCounts        datatypes.JSON `gorm:"column:events_log_counts" json:"events_log_counts,omitempty"`
	EventsLogLatestEventID *string        `gorm:"type:varchar(64);column:events_log_latest_event_id" json:"events_log_latest_event_id,omitempty"`
}

func (EventsLogModel) TableName() string { return "events_logs" }

func (m *SyncScheduleModel) BeforeCreate(tx *gorm.DB) error {
	if m.SyncScheduleID == uuid.Nil {
		m.SyncScheduleID = uuid.New()
	}
	return nil
}

func (m *EventsLogModel) BeforeCreate(tx *gorm.DB) error {
	if m.EventsLogID == uuid.Nil {
		m.EventsLogID = uuid.New()
	}
	return nil
}
