// file: internals/features/sync/service/orchestrator.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
	"gorm.io/gorm"

	"sekolahsync_backend/internals/configs"
	database "sekolahsync_backend/internals/databases"
	catalogModel "sekolahsync_backend/internals/features/catalog/model"
	"sekolahsync_backend/internals/features/sis"
)

/* =========================================================
   SYNC ORCHESTRATOR
   Fan-out per school dengan semaphore (default 5) — batas
   berlaku untuk seluruh batch, bukan per district, karena
   rate limit upstream shared di satu API key. Satu school
   gagal tidak menghentikan school lain.
========================================================= */

type SyncScope string

const (
	ScopeAll         SyncScope = "all"
	ScopeOneDistrict SyncScope = "district"
	ScopeOneSchool   SyncScope = "school"
)

type SyncRequest struct {
	Scope              SyncScope
	DistrictExternalID string
	SchoolExternalID   string
	ForceFull          bool
	InitiatedBy        string
}

type Orchestrator struct {
	catalog    *gorm.DB
	tenants    *database.TenantRegistry
	api        sis.RosterAPI
	locks      *LockService
	reconciler WorkshopReconciler

	MaxConcurrent int64
	LockMinutes   int

	// Progress: push non-blocking, consumer boleh drop
	Progress *ProgressReporter
}

func NewOrchestrator(catalog *gorm.DB, tenants *database.TenantRegistry, api sis.RosterAPI,
	locks *LockService, reconciler WorkshopReconciler) *Orchestrator {
	return &Orchestrator{
		catalog:       catalog,
		tenants:       tenants,
		api:           api,
		locks:         locks,
		reconciler:    reconciler,
		MaxConcurrent: int64(configs.SyncMaxConcurrent),
		LockMinutes:   configs.SyncLockMinutes,
	}
}

// RunSync: titik masuk utama — portal dan scheduled worker dua-duanya lewat sini.
func (o *Orchestrator) RunSync(ctx context.Context, req SyncRequest) (*SyncSummary, error) {
	summary := &SyncSummary{StartedAt: time.Now().UTC()}

	schools, districts, err := o.resolveScope(ctx, req)
	if err != nil {
		return nil, err
	}
	summary.TotalSchools = len(schools)
	log.Printf("[INFO] sync mulai: scope=%s schools=%d force_full=%v", req.Scope, len(schools), req.ForceFull)

	sem := semaphore.NewWeighted(o.MaxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := range schools {
		school := schools[i]
		district := districts[school.SchoolDistrictID]

		if err := sem.Acquire(ctx, 1); err != nil {
			// cancel di tengah fan-out: sisanya tidak dijalankan
			break
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			res := o.syncSchool(ctx, district, school, req)
			mu.Lock()
			summary.Results = append(summary.Results, res)
			mu.Unlock()
		}()
	}
	wg.Wait()

	for _, res := range summary.Results {
		switch res.Status {
		case SchoolSyncSuccess:
			summary.SchoolsSynced++
		case SchoolSyncFailed:
			summary.SchoolsFailed++
		case SchoolSyncLocked:
			summary.SchoolsLocked++
		}
		for _, c := range res.Entities {
			summary.Totals.Add(*c)
		}
	}
	summary.FinishedAt = time.Now().UTC()
	log.Printf("[INFO] sync selesai: ok=%d gagal=%d locked=%d", summary.SchoolsSynced, summary.SchoolsFailed, summary.SchoolsLocked)
	return summary, nil
}

func (o *Orchestrator) resolveScope(ctx context.Context, req SyncRequest) ([]catalogModel.SchoolModel, map[uuid.UUID]catalogModel.DistrictModel, error) {
	q := o.catalog.WithContext(ctx).Where("school_is_active = ?", true)

	switch req.Scope {
	case ScopeOneSchool:
		q = q.Where("school_external_id = ?", req.SchoolExternalID)
	case ScopeOneDistrict:
		var d catalogModel.DistrictModel
		if err := o.catalog.WithContext(ctx).
			Where("district_external_id = ?", req.DistrictExternalID).
			First(&d).Error; err != nil {
			return nil, nil, fmt.Errorf("district %s: %w", req.DistrictExternalID, err)
		}
		q = q.Where("school_district_id = ?", d.DistrictID)
	case ScopeAll:
	default:
		return nil, nil, fmt.Errorf("scope %q tidak dikenal", req.Scope)
	}

	var schools []catalogModel.SchoolModel
	if err := q.Find(&schools).Error; err != nil {
		return nil, nil, err
	}

	districts := make(map[uuid.UUID]catalogModel.DistrictModel)
	for _, s := range schools {
		if _, ok := districts[s.SchoolDistrictID]; ok {
			continue
		}
		var d catalogModel.DistrictModel
		if err := o.catalog.WithContext(ctx).
			Where("district_id = ?", s.SchoolDistrictID).
			First(&d).Error; err != nil {
			return nil, nil, fmt.Errorf("district untuk school %s: %w", s.SchoolExternalID, err)
		}
		districts[s.SchoolDistrictID] = d
	}
	return schools, districts, nil
}

/* ---------------------------------------------------------
   Per-school run
--------------------------------------------------------- */

func (o *Orchestrator) syncSchool(ctx context.Context, district catalogModel.DistrictModel,
	school catalogModel.SchoolModel, req SyncRequest) (res *SyncResult) {

	res = newSyncResult(school.SchoolExternalID, school.SchoolName, catalogModel.SyncTypeFull)
	res.StartedAt = time.Now().UTC()
	defer func() {
		res.FinishedAt = time.Now().UTC()
		if r := recover(); r != nil {
			res.Status = SchoolSyncFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			log.Printf("[ERROR] panic sync school %s: %v", school.SchoolExternalID, r)
		}
	}()

	// ===== lock scope school =====
	scope := ScopeSchool(school.SchoolExternalID)
	initiatedBy := req.InitiatedBy
	acq, err := o.locks.TryAcquire(ctx, scope, "sync-engine", &initiatedBy, o.LockMinutes)
	if err != nil {
		res.Status = SchoolSyncFailed
		res.Error = err.Error()
		return res
	}
	if !acq.Success {
		// bukan error: sudah jalan di proses lain
		res.Status = SchoolSyncLocked
		res.LockHolder = acq.CurrentHolder
		return res
	}
	defer func() {
		if ok, err := o.locks.Release(context.WithoutCancel(ctx), scope, acq.LockID); err != nil || !ok {
			log.Printf("[WARN] release lock %s: ok=%v err=%v", scope, ok, err)
		}
	}()

	// heartbeat selama sync jalan
	stopHeartbeat := o.startHeartbeat(ctx, scope, acq.LockID)
	defer stopHeartbeat()

	// ===== tenant DB =====
	tenant, err := o.tenants.Get(district.DistrictSecretPrefix, school.SchoolDatabaseRef)
	if err != nil {
		res.Status = SchoolSyncFailed
		res.Error = err.Error()
		return res
	}

	sc := &SyncContext{
		Ctx:       ctx,
		Catalog:   o.catalog,
		Tenant:    tenant,
		District:  district,
		School:    school,
		StartTime: time.Now().UTC(),
		Local:     NewLocalTime(district.DistrictTimeZone),
		Tracker:   NewChangeTracker(),
		Workshop:  NewWorkshopProtection(o.reconciler),
		Progress:  o.Progress,
	}

	full := req.ForceFull || school.SchoolRequiresFullSync || !o.hasSuccessfulSync(ctx, school.SchoolID)
	cursor := ""
	if !full {
		cursor = o.loadCursor(ctx, school.SchoolID)
		if cursor == "" {
			// baseline belum pernah ketulis (mis. crash sebelum baseline):
			// incremental tidak terdefinisi, ulang full
			log.Printf("[WARN] school %s tanpa event cursor, paksa full sync", school.SchoolExternalID)
			full = true
		}
	}

	if full {
		o.runFull(sc, res)
	} else {
		res.SyncType = catalogModel.SyncTypeIncremental
		o.runIncremental(sc, res, cursor)
	}
	return res
}

func (o *Orchestrator) startHeartbeat(ctx context.Context, scope string, lockID uuid.UUID) func() {
	done := make(chan struct{})
	interval := time.Duration(o.LockMinutes) * time.Minute / 3
	if interval < time.Second {
		interval = time.Second
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			case <-t.C:
				if ok, err := o.locks.Extend(ctx, scope, lockID, o.LockMinutes); err != nil || !ok {
					log.Printf("[WARN] heartbeat lock %s gagal: ok=%v err=%v", scope, ok, err)
				}
			}
		}
	}()
	return func() { close(done) }
}

/* ---------------------------------------------------------
   Full sync: semua entity urut tetap, lalu baseline cursor +
   clear requires_full_sync dalam satu transaksi catalog.
--------------------------------------------------------- */

func (o *Orchestrator) runFull(sc *SyncContext, res *SyncResult) {
	students := NewStudentHandler(o.api)
	teachers := NewTeacherHandler(o.api)
	terms := NewTermHandler(o.api)
	sections := NewSectionHandler(o.api)
	admins := NewAdminHandler(o.api)

	entityFailed := false
	var sectionRunID uuid.UUID

	type step struct {
		entity catalogModel.SyncEntityType
		run    func() (uuid.UUID, error)
	}
	steps := []step{
		{catalogModel.EntityStudent, func() (uuid.UUID, error) { return students.SyncAll(sc) }},
		{catalogModel.EntityTeacher, func() (uuid.UUID, error) { return teachers.SyncAll(sc) }},
		{catalogModel.EntityTerm, func() (uuid.UUID, error) { return terms.SyncAll(sc) }},
		{catalogModel.EntitySection, func() (uuid.UUID, error) { return sections.SyncAll(sc) }},
		{catalogModel.EntityAdmin, func() (uuid.UUID, error) { return admins.SyncAll(sc) }},
	}

	for _, st := range steps {
		runID, err := st.run()
		if err != nil {
			// satu entity type gagal, sibling tetap jalan
			entityFailed = true
			log.Printf("[ERROR] %s sync school %s: %v", st.entity, sc.School.SchoolExternalID, err)
		}
		if st.entity == catalogModel.EntitySection {
			sectionRunID = runID
		}
		o.collectCounts(sc, res, runID, st.entity)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			res.Status = SchoolSyncFailed
			res.Error = err.Error()
			return
		}
	}

	if sectionRunID != uuid.Nil {
		if err := sc.Workshop.Finalize(sc, sectionRunID); err != nil {
			log.Printf("[ERROR] workshop finalize school %s: %v", sc.School.SchoolExternalID, err)
		}
	}

	if entityFailed {
		// ada entity gagal: jangan tulis baseline, jangan clear flag —
		// run berikutnya full lagi
		res.Status = SchoolSyncFailed
		res.Error = "sebagian entity type gagal, lihat sync history"
		return
	}

	if err := o.establishBaseline(sc); err != nil {
		log.Printf("[ERROR] baseline cursor school %s: %v", sc.School.SchoolExternalID, err)
		res.Status = SchoolSyncFailed
		res.Error = err.Error()
	}
}

// establishBaseline: cursor diambil tenant-filtered (event stream lintas
// tenant tidak comparable), lalu ditulis + clear requires_full_sync dalam
// SATU transaksi — crash sebelum commit berarti run berikutnya full lagi.
func (o *Orchestrator) establishBaseline(sc *SyncContext) error {
	latest, err := o.api.LatestEventID(sc.Ctx, sc.School.SchoolExternalID)
	if err != nil {
		return fmt.Errorf("latest event id: %w", err)
	}

	return sc.Catalog.WithContext(sc.Ctx).Transaction(func(tx *gorm.DB) error {
		if latest != "" {
			if err := tx.Model(&catalogModel.SyncHistoryModel{}).
				Where("sync_history_school_id = ? AND sync_history_start_time = ?",
					sc.School.SchoolID, sc.StartTime).
				UpdateColumn("sync_history_last_event_id", latest).Error; err != nil {
				return err
			}
		}
		return tx.Model(&catalogModel.SchoolModel{}).
			Where("school_id = ?", sc.School.SchoolID).
			UpdateColumn("school_requires_full_sync", false).Error
	})
}

/* ---------------------------------------------------------
   Incremental sync
--------------------------------------------------------- */

func (o *Orchestrator) runIncremental(sc *SyncContext, res *SyncResult, cursor string) {
	students := NewStudentHandler(o.api)
	teachers := NewTeacherHandler(o.api)
	terms := NewTermHandler(o.api)
	sections := NewSectionHandler(o.api)
	processor := NewEventProcessor(o.api, students, teachers, sections, terms)

	hist, err := beginHistory(sc, catalogModel.EntityAll, catalogModel.SyncTypeIncremental)
	if err != nil {
		res.Status = SchoolSyncFailed
		res.Error = err.Error()
		return
	}

	summary, err := processor.ProcessSince(sc, hist.SyncHistoryID, cursor)
	counts := summary.Counts()

	flushChanges(sc, hist)

	if err != nil {
		finishHistory(sc, hist, catalogModel.SyncStatusFailed, counts, err.Error())
		res.Status = SchoolSyncFailed
		res.Error = err.Error()
		res.Entities[catalogModel.EntityAll] = &counts
		return
	}

	// cursor maju hanya setelah batch sukses
	if summary.LastEventID != "" {
		if uerr := sc.Catalog.WithContext(sc.Ctx).Model(hist).
			UpdateColumn("sync_history_last_event_id", summary.LastEventID).Error; uerr != nil {
			log.Printf("[ERROR] simpan cursor school %s: %v", sc.School.SchoolExternalID, uerr)
		}
	}
	finishHistory(sc, hist, catalogModel.SyncStatusSuccess, counts, "")

	if err := sc.Workshop.Finalize(sc, hist.SyncHistoryID); err != nil {
		log.Printf("[ERROR] workshop finalize school %s: %v", sc.School.SchoolExternalID, err)
	}

	res.Entities[catalogModel.EntityAll] = &counts
}

/* ---------------------------------------------------------
   Catalog queries
--------------------------------------------------------- */

func (o *Orchestrator) hasSuccessfulSync(ctx context.Context, schoolID uuid.UUID) bool {
	var count int64
	if err := o.catalog.WithContext(ctx).Model(&catalogModel.SyncHistoryModel{}).
		Where("sync_history_school_id = ? AND sync_history_status = ?", schoolID, catalogModel.SyncStatusSuccess).
		Count(&count).Error; err != nil {
		log.Printf("[ERROR] cek riwayat sync: %v", err)
		return false
	}
	return count > 0
}

func (o *Orchestrator) loadCursor(ctx context.Context, schoolID uuid.UUID) string {
	var h catalogModel.SyncHistoryModel
	err := o.catalog.WithContext(ctx).
		Where("sync_history_school_id = ? AND sync_history_last_event_id IS NOT NULL", schoolID).
		Order("sync_history_start_time DESC").
		First(&h).Error
	if err != nil || h.SyncHistoryLastEventID == nil {
		return ""
	}
	return *h.SyncHistoryLastEventID
}

func (o *Orchestrator) collectCounts(sc *SyncContext, res *SyncResult, runID uuid.UUID, entity catalogModel.SyncEntityType) {
	if runID == uuid.Nil {
		return
	}
	var h catalogModel.SyncHistoryModel
	if err := sc.Catalog.WithContext(sc.Ctx).
		Where("sync_history_id = ?", runID).
		First(&h).Error; err != nil {
		return
	}
	c := res.counts(entity)
	c.Processed = h.SyncHistoryRecordsProcessed
	c.Updated = h.SyncHistoryRecordsUpdated
	c.Failed = h.SyncHistoryRecordsFailed
}
