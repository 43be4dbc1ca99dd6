// file: internals/features/sync/service/lock_service_test.go
package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
)

func TestTryAcquireMutualExclusion(t *testing.T) {
	db := openCatalogDB(t)
	svc := NewLockService(db)
	ctx := context.Background()

	first, err := svc.TryAcquire(ctx, ScopeSchool("sch-001"), "engine-a", nil, 30)
	require.NoError(t, err)
	require.True(t, first.Success)
	require.NotEqual(t, uuid.Nil, first.LockID)

	second, err := svc.TryAcquire(ctx, ScopeSchool("sch-001"), "engine-b", nil, 30)
	require.NoError(t, err)
	assert.False(t, second.Success)
	assert.Equal(t, "engine-a", second.CurrentHolder)

	// scope lain tidak terpengaruh
	other, err := svc.TryAcquire(ctx, ScopeSchool("sch-002"), "engine-b", nil, 30)
	require.NoError(t, err)
	assert.True(t, other.Success)
}

func TestTryAcquireTakesOverExpiredLock(t *testing.T) {
	db := openCatalogDB(t)
	svc := NewLockService(db)
	ctx := context.Background()

	stale := catalogModel.SyncLockModel{
		SyncLockScope:         ScopeSchool("sch-001"),
		SyncLockID:            uuid.New(),
		SyncLockAcquiredBy:    "engine-mati",
		SyncLockMachineName:   "host-lama",
		SyncLockAcquiredAt:    time.Now().UTC().Add(-2 * time.Hour),
		SyncLockExpiresAt:     time.Now().UTC().Add(-1 * time.Hour),
		SyncLockLastHeartbeat: time.Now().UTC().Add(-2 * time.Hour),
	}
	require.NoError(t, db.Create(&stale).Error)

	res, err := svc.TryAcquire(ctx, ScopeSchool("sch-001"), "engine-baru", nil, 30)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.NotEqual(t, stale.SyncLockID, res.LockID)

	// tetap satu row per scope
	var count int64
	require.NoError(t, db.Model(&catalogModel.SyncLockModel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestReleaseRequiresMatchingLockID(t *testing.T) {
	db := openCatalogDB(t)
	svc := NewLockService(db)
	ctx := context.Background()

	res, err := svc.TryAcquire(ctx, ScopeSchool("sch-001"), "engine-a", nil, 30)
	require.NoError(t, err)
	require.True(t, res.Success)

	ok, err := svc.Release(ctx, ScopeSchool("sch-001"), uuid.New())
	require.NoError(t, err)
	assert.False(t, ok, "lockId asing tidak boleh bisa release")

	locked, err := svc.IsLocked(ctx, ScopeSchool("sch-001"))
	require.NoError(t, err)
	assert.True(t, locked)

	ok, err = svc.Release(ctx, ScopeSchool("sch-001"), res.LockID)
	require.NoError(t, err)
	assert.True(t, ok)

	locked, err = svc.IsLocked(ctx, ScopeSchool("sch-001"))
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestExtendHeartbeat(t *testing.T) {
	db := openCatalogDB(t)
	svc := NewLockService(db)
	ctx := context.Background()

	res, err := svc.TryAcquire(ctx, ScopeGlobal, "engine-a", nil, 1)
	require.NoError(t, err)
	require.True(t, res.Success)

	ok, err := svc.Extend(ctx, ScopeGlobal, uuid.New(), 30)
	require.NoError(t, err)
	assert.False(t, ok, "lockId asing tidak boleh bisa extend")

	ok, err = svc.Extend(ctx, ScopeGlobal, res.LockID, 30)
	require.NoError(t, err)
	assert.True(t, ok)

	var row catalogModel.SyncLockModel
	require.NoError(t, db.Where("sync_lock_scope = ?", ScopeGlobal).First(&row).Error)
	assert.True(t, row.SyncLockExpiresAt.After(res.ExpiresAt), "expiry harus maju setelah extend")
}

func TestCleanupExpiredAndForceRelease(t *testing.T) {
	db := openCatalogDB(t)
	svc := NewLockService(db)
	ctx := context.Background()

	expired := catalogModel.SyncLockModel{
		SyncLockScope:         ScopeDistrict("d-001"),
		SyncLockID:            uuid.New(),
		SyncLockAcquiredBy:    "engine-mati",
		SyncLockMachineName:   "host",
		SyncLockAcquiredAt:    time.Now().UTC().Add(-time.Hour),
		SyncLockExpiresAt:     time.Now().UTC().Add(-time.Minute),
		SyncLockLastHeartbeat: time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, db.Create(&expired).Error)

	active, err := svc.TryAcquire(ctx, ScopeSchool("sch-001"), "engine-a", nil, 30)
	require.NoError(t, err)
	require.True(t, active.Success)

	n, err := svc.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n, "hanya lock expired yang disapu")

	released, err := svc.ForceRelease(ctx, ScopeSchool("sch-001"))
	require.NoError(t, err)
	assert.True(t, released)

	released, err = svc.ForceRelease(ctx, ScopeSchool("sch-001"))
	require.NoError(t, err)
	assert.False(t, released, "force release kedua tidak menemukan row")
}
