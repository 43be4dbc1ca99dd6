// file: internals/features/sync/service/sync_context.go
package service

import (
	"context"
	"time"

	"gorm.io/gorm"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
)

/* =========================================================
   SYNC CONTEXT
   Satu per school per run. Semua handler share context ini;
   dalam satu tenant handler jalan berurutan, tidak paralel.
========================================================= */

type SyncContext struct {
	Ctx     context.Context
	Catalog *gorm.DB
	Tenant  *gorm.DB

	District catalogModel.DistrictModel
	School   catalogModel.SchoolModel

	// StartTime (UTC) adalah baseline orphan detection:
	// record aktif dengan last_synced_at < StartTime = orphan candidate.
	StartTime time.Time

	Local    *LocalTime
	Tracker  *ChangeTracker
	Workshop *WorkshopProtection
	Progress *ProgressReporter
}

// Now: timestamp UTC untuk disimpan (konversi lokal hanya di boundary presentasi).
func (sc *SyncContext) Now() time.Time {
	return time.Now().UTC()
}

// Canceled cek sinyal cancel di antara record/page.
func (sc *SyncContext) Canceled() error {
	return sc.Ctx.Err()
}

/* =========================================================
   COUNTS & RESULT TYPES
========================================================= */

type EntityCounts struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
	Failed    int `json:"failed"`
	Deleted   int `json:"deleted"`
}

func (c *EntityCounts) Add(o EntityCounts) {
	c.Processed += o.Processed
	c.Updated += o.Updated
	c.Failed += o.Failed
	c.Deleted += o.Deleted
}

type SchoolSyncStatus string

const (
	SchoolSyncSuccess SchoolSyncStatus = "success"
	SchoolSyncFailed  SchoolSyncStatus = "failed"
	SchoolSyncLocked  SchoolSyncStatus = "locked" // sudah jalan di tempat lain, bukan error
)

type SyncResult struct {
	SchoolID   string                                          `json:"school_id"`
	SchoolName string                                          `json:"school_name"`
	SyncType   catalogModel.SyncType                           `json:"sync_type"`
	Status     SchoolSyncStatus                                `json:"status"`
	Error      string                                          `json:"error,omitempty"`
	LockHolder string                                          `json:"lock_holder,omitempty"`
	Entities   map[catalogModel.SyncEntityType]*EntityCounts   `json:"entities"`
	StartedAt  time.Time                                       `json:"started_at"`
	FinishedAt time.Time                                       `json:"finished_at"`
}

func newSyncResult(schoolID, schoolName string, syncType catalogModel.SyncType) *SyncResult {
	return &SyncResult{
		SchoolID:   schoolID,
		SchoolName: schoolName,
		SyncType:   syncType,
		Status:     SchoolSyncSuccess,
		Entities:   make(map[catalogModel.SyncEntityType]*EntityCounts),
	}
}

func (r *SyncResult) counts(entity catalogModel.SyncEntityType) *EntityCounts {
	c, ok := r.Entities[entity]
	if !ok {
		c = &EntityCounts{}
		r.Entities[entity] = c
	}
	return c
}

type SyncSummary struct {
	TotalSchools   int           `json:"total_schools"`
	SchoolsSynced  int           `json:"schools_synced"`
	SchoolsFailed  int           `json:"schools_failed"`
	SchoolsLocked  int           `json:"schools_locked"`
	Totals         EntityCounts  `json:"totals"`
	Results        []*SyncResult `json:"results"`
	StartedAt      time.Time     `json:"started_at"`
	FinishedAt     time.Time     `json:"finished_at"`
}

/* =========================================================
   PROGRESS (push, non-blocking — consumer boleh drop)
========================================================= */

type SyncProgress struct {
	SchoolID   string                         `json:"school_id"`
	SchoolName string                         `json:"school_name"`
	Entity     catalogModel.SyncEntityType    `json:"entity,omitempty"`
	Counts     EntityCounts                   `json:"counts"`
	Percent    int                            `json:"percent"`
	Done       bool                           `json:"done"`
}

type ProgressReporter struct {
	ch    chan<- SyncProgress
	every int
}

func NewProgressReporter(ch chan<- SyncProgress, every int) *ProgressReporter {
	if every <= 0 {
		every = 25
	}
	return &ProgressReporter{ch: ch, every: every}
}

// Report kirim snapshot tiap `every` record atau saat selesai; drop kalau penuh.
func (r *ProgressReporter) Report(p SyncProgress) {
	if r == nil || r.ch == nil {
		return
	}
	if !p.Done && r.every > 0 && p.Counts.Processed%r.every != 0 {
		return
	}
	select {
	case r.ch <- p:
	default:
	}
}
