// file: internals/features/sync/service/student_handler_test.go
package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
	rosterModel "sekolahsync_backend/internals/features/roster/model"
	"sekolahsync_backend/internals/features/sis"
)

// nextRun: run baru di atas catalog+tenant yang sama (StartTime & tracker fresh).
func nextRun(sc *SyncContext) *SyncContext {
	return &SyncContext{
		Ctx:       sc.Ctx,
		Catalog:   sc.Catalog,
		Tenant:    sc.Tenant,
		District:  sc.District,
		School:    sc.School,
		StartTime: time.Now().UTC(),
		Local:     sc.Local,
		Tracker:   NewChangeTracker(),
		Workshop:  NewWorkshopProtection(noopReconciler{}),
	}
}

func TestStudentSyncAllCreateThenIdempotent(t *testing.T) {
	sc := newTestContext(t)
	api := &fakeAPI{students: []sis.Student{
		{ID: "stu-1", FirstName: "Budi", LastName: "Santoso", Grade: "9", Email: "budi@sek.id"},
		{ID: "stu-2", FirstName: "Siti", LastName: "Aminah", Grade: "10"},
	}}
	h := NewStudentHandler(api)

	runID, err := h.SyncAll(sc)
	require.NoError(t, err)

	var hist catalogModel.SyncHistoryModel
	require.NoError(t, sc.Catalog.Where("sync_history_id = ?", runID).First(&hist).Error)
	assert.Equal(t, catalogModel.SyncStatusSuccess, hist.SyncHistoryStatus)
	assert.Equal(t, 2, hist.SyncHistoryRecordsProcessed)
	assert.Equal(t, 2, hist.SyncHistoryRecordsUpdated)
	assert.NotNil(t, hist.SyncHistoryEndTime)

	var count int64
	require.NoError(t, sc.Tenant.Model(&rosterModel.StudentModel{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)

	// run kedua dengan data sama: tidak ada yang berubah
	sc2 := nextRun(sc)
	runID2, err := h.SyncAll(sc2)
	require.NoError(t, err)

	var hist2 catalogModel.SyncHistoryModel
	require.NoError(t, sc.Catalog.Where("sync_history_id = ?", runID2).First(&hist2).Error)
	assert.Equal(t, 2, hist2.SyncHistoryRecordsProcessed)
	assert.Zero(t, hist2.SyncHistoryRecordsUpdated, "no-op run tidak boleh mencatat update")

	var changes int64
	require.NoError(t, sc.Catalog.Model(&catalogModel.SyncChangeDetailModel{}).
		Where("sync_change_detail_sync_id = ?", runID2).Count(&changes).Error)
	assert.Zero(t, changes)
}

func TestStudentUpsertNoOpOnlyStampsLastSynced(t *testing.T) {
	sc := newTestContext(t)
	old := time.Now().UTC().Add(-48 * time.Hour)
	seedStudent(t, sc.Tenant, "stu-1", "Budi", "Santoso", "9", old)
	h := NewStudentHandler(&fakeAPI{})

	changed, err := h.Upsert(sc, sis.Student{ID: "stu-1", FirstName: "Budi", LastName: "Santoso", Grade: "9"})
	require.NoError(t, err)
	assert.False(t, changed)

	var m rosterModel.StudentModel
	require.NoError(t, sc.Tenant.Where("student_external_id = ?", "stu-1").First(&m).Error)
	assert.True(t, m.StudentLastSyncedAt.After(old), "last_synced_at tetap di-stamp di run no-op")
	assert.Zero(t, sc.Tracker.PendingCount(), "no-op tidak masuk audit trail")
}

func TestStudentUpsertRestoresSoftDeleted(t *testing.T) {
	sc := newTestContext(t)
	m := seedStudent(t, sc.Tenant, "stu-1", "Budi", "Santoso", "9", time.Now().UTC())
	require.NoError(t, sc.Tenant.Delete(&m).Error)
	h := NewStudentHandler(&fakeAPI{})

	changed, err := h.Upsert(sc, sis.Student{ID: "stu-1", FirstName: "Budi", LastName: "Santoso", Grade: "9"})
	require.NoError(t, err)
	assert.True(t, changed, "record muncul lagi upstream = restore, bukan no-op")

	var restored rosterModel.StudentModel
	require.NoError(t, sc.Tenant.Where("student_external_id = ?", "stu-1").First(&restored).Error)
	assert.False(t, restored.StudentDeletedAt.Valid)
}

func TestStudentOrphanDetection(t *testing.T) {
	sc := newTestContext(t)
	// terlihat di run ini
	seedStudent(t, sc.Tenant, "stu-1", "Budi", "Santoso", "9", time.Now().UTC().Add(-time.Hour))
	// tidak terlihat: last_synced_at lama
	seedStudent(t, sc.Tenant, "stu-2", "Siti", "Aminah", "10", time.Now().UTC().Add(-time.Hour))

	api := &fakeAPI{students: []sis.Student{
		{ID: "stu-1", FirstName: "Budi", LastName: "Santoso", Grade: "9"},
	}}
	h := NewStudentHandler(api)

	runID, err := h.SyncAll(sc)
	require.NoError(t, err)

	// stu-2 hilang dari upstream → soft delete, bukan hard delete
	var gone rosterModel.StudentModel
	err = sc.Tenant.Where("student_external_id = ?", "stu-2").First(&gone).Error
	assert.Error(t, err, "orphan tidak boleh kelihatan di query default")
	require.NoError(t, sc.Tenant.Unscoped().Where("student_external_id = ?", "stu-2").First(&gone).Error)
	assert.True(t, gone.StudentDeletedAt.Valid)

	// stu-1 aman
	var alive rosterModel.StudentModel
	require.NoError(t, sc.Tenant.Where("student_external_id = ?", "stu-1").First(&alive).Error)

	var orphanRows int64
	require.NoError(t, sc.Catalog.Model(&catalogModel.SyncChangeDetailModel{}).
		Where("sync_change_detail_sync_id = ? AND sync_change_detail_change_type = ?", runID, catalogModel.ChangeOrphaned).
		Count(&orphanRows).Error)
	assert.EqualValues(t, 1, orphanRows)

	var hist catalogModel.SyncHistoryModel
	require.NoError(t, sc.Catalog.Where("sync_history_id = ?", runID).First(&hist).Error)
	assert.Equal(t, 1, hist.SyncHistoryRecordsProcessed)
}

func TestStudentHandleDelete(t *testing.T) {
	sc := newTestContext(t)
	seedStudent(t, sc.Tenant, "stu-1", "Budi", "Santoso", "9", time.Now().UTC())
	h := NewStudentHandler(&fakeAPI{})

	deleted, err := h.HandleDelete(sc, "stu-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	// delete ulang dan delete id asing: no-op tanpa error
	deleted, err = h.HandleDelete(sc, "stu-1")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = h.HandleDelete(sc, "stu-404")
	require.NoError(t, err)
	assert.False(t, deleted)
}
