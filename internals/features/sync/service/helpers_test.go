// file: internals/features/sync/service/helpers_test.go
package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
	rosterModel "sekolahsync_backend/internals/features/roster/model"
	"sekolahsync_backend/internals/features/sis"
)

// DDL eksplisit, tanpa default function postgres (gen_random_uuid dkk) —
// id diisi app-side lewat BeforeCreate.
var catalogDDL = []string{
	`CREATE TABLE districts (
		district_id TEXT PRIMARY KEY,
		district_external_id TEXT NOT NULL UNIQUE,
		district_name TEXT NOT NULL,
		district_secret_prefix TEXT NOT NULL,
		district_time_zone TEXT NOT NULL,
		district_created_at DATETIME,
		district_updated_at DATETIME
	)`,
	`CREATE TABLE schools (
		school_id TEXT PRIMARY KEY,
		school_district_id TEXT NOT NULL,
		school_external_id TEXT NOT NULL UNIQUE,
		school_name TEXT NOT NULL,
		school_database_ref TEXT NOT NULL,
		school_is_active INTEGER NOT NULL DEFAULT 1,
		school_requires_full_sync INTEGER NOT NULL DEFAULT 1,
		school_created_at DATETIME,
		school_updated_at DATETIME
	)`,
	`CREATE TABLE sync_histories (
		sync_history_id TEXT PRIMARY KEY,
		sync_history_school_id TEXT NOT NULL,
		sync_history_entity_type TEXT NOT NULL,
		sync_history_sync_type TEXT NOT NULL,
		sync_history_start_time DATETIME NOT NULL,
		sync_history_end_time DATETIME,
		sync_history_status TEXT NOT NULL DEFAULT 'in_progress',
		sync_history_records_processed INTEGER NOT NULL DEFAULT 0,
		sync_history_records_updated INTEGER NOT NULL DEFAULT 0,
		sync_history_records_failed INTEGER NOT NULL DEFAULT 0,
		sync_history_last_event_id TEXT,
		sync_history_error_message TEXT
	)`,
	`CREATE TABLE sync_change_details (
		sync_change_detail_id TEXT PRIMARY KEY,
		sync_change_detail_sync_id TEXT NOT NULL,
		sync_change_detail_entity_type TEXT NOT NULL,
		sync_change_detail_entity_id TEXT NOT NULL,
		sync_change_detail_change_type TEXT NOT NULL,
		sync_change_detail_fields_changed TEXT,
		sync_change_detail_old_values TEXT,
		sync_change_detail_new_values TEXT,
		sync_change_detail_changed_at DATETIME
	)`,
	`CREATE TABLE sync_warnings (
		sync_warning_id TEXT PRIMARY KEY,
		sync_warning_sync_id TEXT NOT NULL,
		sync_warning_type TEXT NOT NULL,
		sync_warning_entity_type TEXT NOT NULL,
		sync_warning_entity_id TEXT,
		sync_warning_message TEXT NOT NULL,
		sync_warning_affected_linked_count INTEGER NOT NULL DEFAULT 0,
		sync_warning_acknowledged INTEGER NOT NULL DEFAULT 0,
		sync_warning_created_at DATETIME
	)`,
	`CREATE TABLE sync_locks (
		sync_lock_scope TEXT PRIMARY KEY,
		sync_lock_id TEXT NOT NULL,
		sync_lock_acquired_by TEXT NOT NULL,
		sync_lock_initiated_by TEXT,
		sync_lock_machine_name TEXT NOT NULL,
		sync_lock_acquired_at DATETIME NOT NULL,
		sync_lock_expires_at DATETIME NOT NULL,
		sync_lock_last_heartbeat DATETIME NOT NULL
	)`,
	`CREATE TABLE sync_schedules (
		sync_schedule_id TEXT PRIMARY KEY,
		sync_schedule_district_id TEXT NOT NULL,
		sync_schedule_local_hour INTEGER NOT NULL,
		sync_schedule_local_minute INTEGER NOT NULL,
		sync_schedule_days_of_week TEXT,
		sync_schedule_enabled INTEGER NOT NULL DEFAULT 1,
		sync_schedule_last_triggered_utc DATETIME
	)`,
	`CREATE TABLE events_logs (
		events_log_id TEXT PRIMARY KEY,
		events_log_school_id TEXT NOT NULL,
		events_log_checked_at DATETIME,
		events_log_api_accessible INTEGER NOT NULL,
		events_log_counts TEXT,
		events_log_latest_event_id TEXT
	)`,
}

var tenantDDL = []string{
	`CREATE TABLE students (
		student_id TEXT PRIMARY KEY,
		student_external_id TEXT NOT NULL UNIQUE,
		student_first_name TEXT NOT NULL,
		student_last_name TEXT NOT NULL,
		student_email TEXT,
		student_grade TEXT,
		student_number TEXT,
		student_last_synced_at DATETIME NOT NULL,
		student_created_at DATETIME,
		student_updated_at DATETIME,
		student_deleted_at DATETIME
	)`,
	`CREATE TABLE teachers (
		teacher_id TEXT PRIMARY KEY,
		teacher_external_id TEXT NOT NULL UNIQUE,
		teacher_first_name TEXT NOT NULL,
		teacher_last_name TEXT NOT NULL,
		teacher_email TEXT,
		teacher_title TEXT,
		teacher_last_synced_at DATETIME NOT NULL,
		teacher_created_at DATETIME,
		teacher_updated_at DATETIME,
		teacher_deleted_at DATETIME
	)`,
	`CREATE TABLE sections (
		section_id TEXT PRIMARY KEY,
		section_external_id TEXT NOT NULL UNIQUE,
		section_name TEXT NOT NULL,
		section_period TEXT,
		section_subject TEXT,
		section_term_id TEXT,
		section_last_synced_at DATETIME NOT NULL,
		section_last_event_received_at DATETIME,
		section_created_at DATETIME,
		section_updated_at DATETIME,
		section_deleted_at DATETIME
	)`,
	`CREATE TABLE terms (
		term_id TEXT PRIMARY KEY,
		term_external_id TEXT NOT NULL UNIQUE,
		term_name TEXT NOT NULL,
		term_start_date DATETIME NOT NULL,
		term_end_date DATETIME NOT NULL,
		term_is_manual INTEGER NOT NULL DEFAULT 0,
		term_last_synced_at DATETIME NOT NULL,
		term_created_at DATETIME,
		term_updated_at DATETIME,
		term_deleted_at DATETIME
	)`,
	`CREATE TABLE school_admins (
		school_admin_id TEXT PRIMARY KEY,
		school_admin_external_id TEXT NOT NULL UNIQUE,
		school_admin_first_name TEXT NOT NULL,
		school_admin_last_name TEXT NOT NULL,
		school_admin_email TEXT,
		school_admin_auth_source TEXT NOT NULL DEFAULT 'sis',
		school_admin_created_at DATETIME,
		school_admin_updated_at DATETIME,
		school_admin_deleted_at DATETIME
	)`,
	`CREATE TABLE teacher_sections (
		teacher_section_id TEXT PRIMARY KEY,
		teacher_section_section_id TEXT NOT NULL,
		teacher_section_teacher_id TEXT NOT NULL,
		UNIQUE (teacher_section_section_id, teacher_section_teacher_id)
	)`,
	`CREATE TABLE student_sections (
		student_section_id TEXT PRIMARY KEY,
		student_section_section_id TEXT NOT NULL,
		student_section_student_id TEXT NOT NULL,
		UNIQUE (student_section_section_id, student_section_student_id)
	)`,
	`CREATE TABLE workshops (
		workshop_id TEXT PRIMARY KEY,
		workshop_name TEXT NOT NULL,
		workshop_created_at DATETIME
	)`,
	`CREATE TABLE workshop_sections (
		workshop_section_id TEXT PRIMARY KEY,
		workshop_section_workshop_id TEXT NOT NULL,
		workshop_section_section_id TEXT NOT NULL,
		UNIQUE (workshop_section_workshop_id, workshop_section_section_id)
	)`,
}

func openTestDB(t *testing.T, ddl []string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// ":memory:" = satu database per koneksi, pool harus 1
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	for _, stmt := range ddl {
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func openCatalogDB(t *testing.T) *gorm.DB { return openTestDB(t, catalogDDL) }
func openTenantDB(t *testing.T) *gorm.DB  { return openTestDB(t, tenantDDL) }

// newTestContext bikin SyncContext lengkap dengan district+school tersimpan
// di catalog. StartTime = sekarang.
func newTestContext(t *testing.T) *SyncContext {
	t.Helper()
	catalog := openCatalogDB(t)
	tenant := openTenantDB(t)

	district := catalogModel.DistrictModel{
		DistrictExternalID:   "d-001",
		DistrictName:         "Distrik Uji",
		DistrictSecretPrefix: "TESTDIST",
		DistrictTimeZone:     "America/New_York",
	}
	require.NoError(t, catalog.Create(&district).Error)

	school := catalogModel.SchoolModel{
		SchoolDistrictID:  district.DistrictID,
		SchoolExternalID:  "sch-001",
		SchoolName:        "Sekolah Uji",
		SchoolDatabaseRef: "sch001",
		SchoolIsActive:    true,
	}
	require.NoError(t, catalog.Create(&school).Error)

	return &SyncContext{
		Ctx:       context.Background(),
		Catalog:   catalog,
		Tenant:    tenant,
		District:  district,
		School:    school,
		StartTime: time.Now().UTC(),
		Local:     NewLocalTime(district.DistrictTimeZone),
		Tracker:   NewChangeTracker(),
		Workshop:  NewWorkshopProtection(noopReconciler{}),
	}
}

/* ---------- fakes ---------- */

type noopReconciler struct{}

func (noopReconciler) Run(ctx context.Context, tenant *gorm.DB, syncRunID uuid.UUID) error {
	return nil
}

// failReconciler: selalu gagal, buat skenario reconciliation_failed.
type failReconciler struct{}

func (failReconciler) Run(ctx context.Context, tenant *gorm.DB, syncRunID uuid.UUID) error {
	return errors.New("prosedur reconcile tidak tersedia")
}

type fakeAPI struct {
	students []sis.Student
	teachers []sis.Teacher
	sections []sis.Section
	terms    []sis.Term
	admins   []sis.Admin
	events   []sis.Event

	latestEventID  string
	latestEventErr error
	listErr        error
}

func (f *fakeAPI) ListStudents(ctx context.Context, schoolID string) ([]sis.Student, error) {
	return f.students, f.listErr
}
func (f *fakeAPI) ListTeachers(ctx context.Context, schoolID string) ([]sis.Teacher, error) {
	return f.teachers, f.listErr
}
func (f *fakeAPI) ListSections(ctx context.Context, schoolID string) ([]sis.Section, error) {
	return f.sections, f.listErr
}
func (f *fakeAPI) ListTerms(ctx context.Context, schoolID string) ([]sis.Term, error) {
	return f.terms, f.listErr
}
func (f *fakeAPI) ListAdmins(ctx context.Context, schoolID string) ([]sis.Admin, error) {
	return f.admins, f.listErr
}
func (f *fakeAPI) ListEvents(ctx context.Context, cursor, schoolID string, limit int) ([]sis.Event, error) {
	return f.events, f.listErr
}
func (f *fakeAPI) LatestEventID(ctx context.Context, schoolID string) (string, error) {
	return f.latestEventID, f.latestEventErr
}

/* ---------- seed helpers ---------- */

func seedStudent(t *testing.T, tenant *gorm.DB, externalID, first, last, grade string, syncedAt time.Time) rosterModel.StudentModel {
	t.Helper()
	m := rosterModel.StudentModel{
		StudentExternalID:   externalID,
		StudentFirstName:    first,
		StudentLastName:     last,
		StudentGrade:        ptrOrNil(grade),
		StudentLastSyncedAt: syncedAt,
	}
	require.NoError(t, tenant.Create(&m).Error)
	return m
}

func seedSection(t *testing.T, tenant *gorm.DB, externalID, name string, syncedAt time.Time) rosterModel.SectionModel {
	t.Helper()
	m := rosterModel.SectionModel{
		SectionExternalID:   externalID,
		SectionName:         name,
		SectionLastSyncedAt: syncedAt,
	}
	require.NoError(t, tenant.Create(&m).Error)
	return m
}

func linkWorkshop(t *testing.T, tenant *gorm.DB, name string, section rosterModel.SectionModel) rosterModel.WorkshopModel {
	t.Helper()
	w := rosterModel.WorkshopModel{WorkshopName: name}
	require.NoError(t, tenant.Create(&w).Error)
	link := rosterModel.WorkshopSectionModel{
		WorkshopSectionWorkshopID: w.WorkshopID,
		WorkshopSectionSectionID:  section.SectionID,
	}
	require.NoError(t, tenant.Create(&link).Error)
	return w
}
