// file: internals/features/sync/service/health.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"sekolahsync_backend/internals/configs"
	database "sekolahsync_backend/internals/databases"
	catalogModel "sekolahsync_backend/internals/features/catalog/model"
	rosterModel "sekolahsync_backend/internals/features/roster/model"
	"sekolahsync_backend/internals/features/sis"
)

/* =========================================================
   SYNC HEALTH MONITOR
   Query staleness lumayan berat di tenant besar, jadi hasil
   di-cache beberapa menit. Cache per-school, bukan global.
========================================================= */

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStale    HealthStatus = "stale"
)

type EntityStaleness struct {
	Entity     catalogModel.SyncEntityType `json:"entity"`
	Active     int64                       `json:"active"`
	StaleCount int64                       `json:"stale_count"`
	OldestSync *time.Time                  `json:"oldest_sync,omitempty"`
}

type EventStreamHealth struct {
	Accessible    bool   `json:"accessible"`
	LatestEventID string `json:"latest_event_id,omitempty"`
	Detail        string `json:"detail,omitempty"`
}

type SchoolHealth struct {
	SchoolID          string            `json:"school_id"`
	SchoolName        string            `json:"school_name"`
	Status            HealthStatus      `json:"status"`
	Staleness         []EntityStaleness `json:"staleness"`
	UnlinkedStudents  int64             `json:"unlinked_students"`
	UnlinkedTeachers  int64             `json:"unlinked_teachers"`
	PendingWarnings   int64             `json:"pending_warnings"`
	LastSuccessfulRun *time.Time        `json:"last_successful_run,omitempty"`
	EventStream       EventStreamHealth `json:"event_stream"`
	CheckedAt         time.Time         `json:"checked_at"`
}

/* ---------- cache ---------- */

type healthEntry struct {
	health    *SchoolHealth
	expiresAt time.Time
}

type HealthCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]healthEntry
}

func NewHealthCache(ttl time.Duration) *HealthCache {
	if ttl <= 0 {
		ttl = configs.HealthCacheDuration
	}
	return &HealthCache{ttl: ttl, entries: make(map[string]healthEntry)}
}

func (c *HealthCache) get(key string) *SchoolHealth {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil
	}
	return e.health
}

func (c *HealthCache) put(key string, h *SchoolHealth) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = healthEntry{health: h, expiresAt: time.Now().Add(c.ttl)}
}

// Reset buang semua entri cache (dipakai setelah sync manual biar hasil fresh).
func (c *HealthCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]healthEntry)
}

/* ---------- service ---------- */

type HealthService struct {
	catalog   *gorm.DB
	tenants   *database.TenantRegistry
	api       sis.RosterAPI
	cache     *HealthCache
	StaleDays int
}

func NewHealthService(catalog *gorm.DB, tenants *database.TenantRegistry, api sis.RosterAPI, cache *HealthCache) *HealthService {
	if cache == nil {
		cache = NewHealthCache(configs.HealthCacheDuration)
	}
	return &HealthService{
		catalog:   catalog,
		tenants:   tenants,
		api:       api,
		cache:     cache,
		StaleDays: configs.SyncStaleDays,
	}
}

func (s *HealthService) Cache() *HealthCache { return s.cache }

// CheckSchool: snapshot kesehatan satu school, cached.
func (s *HealthService) CheckSchool(ctx context.Context, district catalogModel.DistrictModel, school catalogModel.SchoolModel) (*SchoolHealth, error) {
	if cached := s.cache.get(school.SchoolExternalID); cached != nil {
		return cached, nil
	}

	tenant, err := s.tenants.Get(district.DistrictSecretPrefix, school.SchoolDatabaseRef)
	if err != nil {
		return nil, fmt.Errorf("tenant db %s: %w", school.SchoolExternalID, err)
	}

	h := &SchoolHealth{
		SchoolID:   school.SchoolExternalID,
		SchoolName: school.SchoolName,
		Status:     HealthHealthy,
		CheckedAt:  time.Now().UTC(),
	}

	threshold := time.Now().UTC().AddDate(0, 0, -s.StaleDays)
	h.Staleness = []EntityStaleness{
		s.stale(ctx, tenant, catalogModel.EntityStudent, &rosterModel.StudentModel{}, "student_last_synced_at", threshold),
		s.stale(ctx, tenant, catalogModel.EntityTeacher, &rosterModel.TeacherModel{}, "teacher_last_synced_at", threshold),
		s.stale(ctx, tenant, catalogModel.EntitySection, &rosterModel.SectionModel{}, "section_last_synced_at", threshold),
		s.stale(ctx, tenant, catalogModel.EntityTerm, &rosterModel.TermModel{}, "term_last_synced_at", threshold),
	}
	for _, es := range h.Staleness {
		if es.StaleCount > 0 {
			h.Status = HealthStale
			break
		}
	}

	// siswa/guru aktif tanpa satu pun section: indikasi roster bolong
	tenant.WithContext(ctx).Model(&rosterModel.StudentModel{}).
		Where("student_id NOT IN (?)", tenant.Model(&rosterModel.StudentSectionModel{}).
			Select("student_section_student_id")).
		Count(&h.UnlinkedStudents)
	tenant.WithContext(ctx).Model(&rosterModel.TeacherModel{}).
		Where("teacher_id NOT IN (?)", tenant.Model(&rosterModel.TeacherSectionModel{}).
			Select("teacher_section_teacher_id")).
		Count(&h.UnlinkedTeachers)

	s.catalog.WithContext(ctx).Model(&catalogModel.SyncWarningModel{}).
		Joins("JOIN sync_histories ON sync_histories.sync_history_id = sync_warnings.sync_warning_sync_id").
		Where("sync_histories.sync_history_school_id = ? AND sync_warning_acknowledged = ?", school.SchoolID, false).
		Count(&h.PendingWarnings)

	var last catalogModel.SyncHistoryModel
	if err := s.catalog.WithContext(ctx).
		Where("sync_history_school_id = ? AND sync_history_status = ?", school.SchoolID, catalogModel.SyncStatusSuccess).
		Order("sync_history_start_time DESC").
		First(&last).Error; err == nil {
		h.LastSuccessfulRun = &last.SyncHistoryStartTime
	}

	h.EventStream = s.probeEventStream(ctx, school)
	if !h.EventStream.Accessible && h.Status == HealthHealthy {
		h.Status = HealthDegraded
	}

	s.persistEventsLog(ctx, school, h)
	s.cache.put(school.SchoolExternalID, h)
	return h, nil
}

func (s *HealthService) stale(ctx context.Context, tenant *gorm.DB, entity catalogModel.SyncEntityType,
	model interface{}, syncedCol string, threshold time.Time) EntityStaleness {

	es := EntityStaleness{Entity: entity}
	tenant.WithContext(ctx).Model(model).Count(&es.Active)
	tenant.WithContext(ctx).Model(model).
		Where(syncedCol+" < ?", threshold).
		Count(&es.StaleCount)

	var oldest time.Time
	row := tenant.WithContext(ctx).Model(model).Select("MIN(" + syncedCol + ")").Row()
	if err := row.Scan(&oldest); err == nil && !oldest.IsZero() {
		es.OldestSync = &oldest
	}
	return es
}

// probeEventStream: 403 itu degraded, bukan error — incremental sync tinggal
// fallback ke full, tapi operator perlu tahu supaya bisa minta permission.
func (s *HealthService) probeEventStream(ctx context.Context, school catalogModel.SchoolModel) EventStreamHealth {
	latest, err := s.api.LatestEventID(ctx, school.SchoolExternalID)
	switch {
	case errors.Is(err, sis.ErrEventsForbidden):
		return EventStreamHealth{
			Accessible: false,
			Detail:     "events endpoint menolak akses; cek permission API key di portal SIS",
		}
	case err != nil:
		return EventStreamHealth{Accessible: false, Detail: err.Error()}
	case latest == "":
		return EventStreamHealth{
			Accessible: true,
			Detail:     "event stream kosong; full sync akan dipakai sampai ada event",
		}
	default:
		return EventStreamHealth{Accessible: true, LatestEventID: latest}
	}
}

func (s *HealthService) persistEventsLog(ctx context.Context, school catalogModel.SchoolModel, h *SchoolHealth) {
	counts := map[string]int64{
		"unlinked_students": h.UnlinkedStudents,
		"unlinked_teachers": h.UnlinkedTeachers,
	}
	for _, es := range h.Staleness {
		counts["stale_"+string(es.Entity)] = es.StaleCount
	}
	raw, err := sonic.Marshal(counts)
	if err != nil {
		return
	}
	row := catalogModel.EventsLogModel{
		EventsLogSchoolID:      school.SchoolID,
		EventsLogAPIAccessible: h.EventStream.Accessible,
		EventsLogCounts:        datatypes.JSON(raw),
		EventsLogLatestEventID: ptrOrNil(h.EventStream.LatestEventID),
	}
	if err := s.catalog.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("[WARN] simpan events log %s: %v", school.SchoolExternalID, err)
	}
}
