// file: internals/features/sync/service/change_tracker_test.go
package service

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
)

func TestDiffFieldsOrdinal(t *testing.T) {
	old := map[string]string{"first_name": "Budi", "last_name": "Santoso", "grade": "9"}

	assert.Empty(t, DiffFields(old, map[string]string{"first_name": "Budi", "last_name": "Santoso", "grade": "9"}))

	// perbandingan ordinal: beda case = beda
	diff := DiffFields(old, map[string]string{"first_name": "budi", "last_name": "Santoso", "grade": "10"})
	assert.Equal(t, []string{"first_name", "grade"}, diff, "hasil harus sorted")

	// field hilang dari payload baru tetap dihitung berubah
	diff = DiffFields(old, map[string]string{"first_name": "Budi", "last_name": "Santoso"})
	assert.Equal(t, []string{"grade"}, diff)
}

func TestChangeTrackerFlush(t *testing.T) {
	catalog := openCatalogDB(t)
	tracker := NewChangeTracker()
	syncID := uuid.New()

	tracker.RecordCreated(catalogModel.EntityStudent, "stu-1", map[string]string{"first_name": "Budi"})
	tracker.RecordUpdated(catalogModel.EntityStudent, "stu-2",
		[]string{"grade"}, map[string]string{"grade": "9"}, map[string]string{"grade": "10"})
	tracker.RecordOrphaned(catalogModel.EntityTeacher, "tch-1", map[string]string{"first_name": "Siti"})
	require.Equal(t, 3, tracker.PendingCount())

	require.NoError(t, tracker.Flush(catalog, syncID))
	assert.Zero(t, tracker.PendingCount(), "antrean kosong setelah flush")

	var rows []catalogModel.SyncChangeDetailModel
	require.NoError(t, catalog.Where("sync_change_detail_sync_id = ?", syncID).
		Order("sync_change_detail_entity_id").Find(&rows).Error)
	require.Len(t, rows, 3)

	assert.Equal(t, catalogModel.ChangeCreated, rows[0].SyncChangeDetailChangeType)
	assert.Equal(t, catalogModel.ChangeUpdated, rows[1].SyncChangeDetailChangeType)
	assert.Equal(t, "grade", rows[1].SyncChangeDetailFieldsChanged)

	var oldVals map[string]string
	require.NoError(t, json.Unmarshal(rows[1].SyncChangeDetailOldValues, &oldVals))
	assert.Equal(t, "9", oldVals["grade"])

	assert.Equal(t, catalogModel.ChangeOrphaned, rows[2].SyncChangeDetailChangeType)

	// flush kedua tanpa entry baru = no-op
	require.NoError(t, tracker.Flush(catalog, syncID))
}
