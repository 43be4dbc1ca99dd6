// file: internals/features/sync/service/admin_handler_test.go
package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rosterModel "sekolahsync_backend/internals/features/roster/model"
	"sekolahsync_backend/internals/features/sis"
)

func seedAdmin(t *testing.T, sc *SyncContext, externalID string, source rosterModel.AdminAuthSource) rosterModel.SchoolAdminModel {
	t.Helper()
	m := rosterModel.SchoolAdminModel{
		SchoolAdminExternalID: externalID,
		SchoolAdminFirstName:  "Kepala",
		SchoolAdminLastName:   "Sekolah",
		SchoolAdminAuthSource: source,
	}
	require.NoError(t, sc.Tenant.Create(&m).Error)
	return m
}

func TestAdminUpsertNeverTouchesExternalAccounts(t *testing.T) {
	sc := newTestContext(t)
	seedAdmin(t, sc, "adm-ext", rosterModel.AdminAuthExternal)
	h := NewAdminHandler(&fakeAPI{})

	changed, err := h.Upsert(sc, sis.Admin{ID: "adm-ext", FirstName: "Nama", LastName: "Baru"})
	require.NoError(t, err)
	assert.False(t, changed)

	var m rosterModel.SchoolAdminModel
	require.NoError(t, sc.Tenant.Where("school_admin_external_id = ?", "adm-ext").First(&m).Error)
	assert.Equal(t, "Kepala", m.SchoolAdminFirstName, "akun external tidak boleh di-overwrite")
}

func TestAdminDeleteSkipsExternalAccounts(t *testing.T) {
	sc := newTestContext(t)
	seedAdmin(t, sc, "adm-ext", rosterModel.AdminAuthExternal)
	seedAdmin(t, sc, "adm-sis", rosterModel.AdminAuthSIS)
	h := NewAdminHandler(&fakeAPI{})

	deleted, err := h.HandleDelete(sc, "adm-ext")
	require.NoError(t, err)
	assert.False(t, deleted)

	deleted, err = h.HandleDelete(sc, "adm-sis")
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestAdminOrphanOnlySISAccounts(t *testing.T) {
	sc := newTestContext(t)
	// dua-duanya dibuat sebelum StartTime run ini
	ext := seedAdmin(t, sc, "adm-ext", rosterModel.AdminAuthExternal)
	sis1 := seedAdmin(t, sc, "adm-sis", rosterModel.AdminAuthSIS)
	old := time.Now().UTC().Add(-time.Hour)
	require.NoError(t, sc.Tenant.Model(&ext).UpdateColumn("school_admin_updated_at", old).Error)
	require.NoError(t, sc.Tenant.Model(&sis1).UpdateColumn("school_admin_updated_at", old).Error)

	sc.StartTime = time.Now().UTC()
	h := NewAdminHandler(&fakeAPI{})

	_, err := h.SyncAll(sc)
	require.NoError(t, err)

	var m rosterModel.SchoolAdminModel
	// akun SIS yang hilang dari upstream → soft delete
	err = sc.Tenant.Where("school_admin_external_id = ?", "adm-sis").First(&m).Error
	assert.Error(t, err)

	// akun external tidak tersentuh
	require.NoError(t, sc.Tenant.Where("school_admin_external_id = ?", "adm-ext").First(&m).Error)
	assert.False(t, m.SchoolAdminDeletedAt.Valid)
}
