// file: internals/features/sync/service/lock_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
)

/* =========================================================
   DISTRIBUTED LOCK SERVICE
   Mutual exclusion lintas proses via row di catalog DB.
   Row dengan expires_at masa depan = lock dipegang.
   Acquire harus atomik (insert-if-absent-or-expired) supaya
   tidak ada check-then-act race antar mesin.
========================================================= */

func ScopeSchool(externalID string) string   { return "school:" + externalID }
func ScopeDistrict(externalID string) string { return "district:" + externalID }

const ScopeGlobal = "global"

type AcquireResult struct {
	Success       bool      `json:"success"`
	LockID        uuid.UUID `json:"lock_id,omitempty"`
	CurrentHolder string    `json:"current_holder,omitempty"`
	ExpiresAt     time.Time `json:"expires_at,omitempty"`
}

type LockService struct {
	db      *gorm.DB
	machine string
}

func NewLockService(db *gorm.DB) *LockService {
	host, _ := os.Hostname()
	if host == "" {
		host = "unknown"
	}
	return &LockService{db: db, machine: host}
}

// TryAcquire: sukses kalau scope belum terkunci atau lock lama sudah expired.
// Lock contention bukan error — caller dapat Success=false + holder sekarang.
func (s *LockService) TryAcquire(ctx context.Context, scope, acquiredBy string, initiatedBy *string, durationMinutes int) (AcquireResult, error) {
	now := time.Now().UTC()
	lockID := uuid.New()
	row := catalogModel.SyncLockModel{
		SyncLockScope:         scope,
		SyncLockID:            lockID,
		SyncLockAcquiredBy:    acquiredBy,
		SyncLockInitiatedBy:   initiatedBy,
		SyncLockMachineName:   s.machine,
		SyncLockAcquiredAt:    now,
		SyncLockExpiresAt:     now.Add(time.Duration(durationMinutes) * time.Minute),
		SyncLockLastHeartbeat: now,
	}

	err := s.db.WithContext(ctx).Create(&row).Error
	if err == nil {
		return AcquireResult{Success: true, LockID: lockID, ExpiresAt: row.SyncLockExpiresAt}, nil
	}
	if !isDuplicateKey(err) {
		return AcquireResult{}, fmt.Errorf("acquire lock %s: %w", scope, err)
	}

	// row sudah ada: coba ambil alih kalau expired (satu UPDATE atomik)
	res := s.db.WithContext(ctx).Model(&catalogModel.SyncLockModel{}).
		Where("sync_lock_scope = ? AND sync_lock_expires_at <= ?", scope, now).
		Updates(map[string]interface{}{
			"sync_lock_id":             lockID,
			"sync_lock_acquired_by":    acquiredBy,
			"sync_lock_initiated_by":   initiatedBy,
			"sync_lock_machine_name":   s.machine,
			"sync_lock_acquired_at":    now,
			"sync_lock_expires_at":     now.Add(time.Duration(durationMinutes) * time.Minute),
			"sync_lock_last_heartbeat": now,
		})
	if res.Error != nil {
		return AcquireResult{}, fmt.Errorf("takeover lock %s: %w", scope, res.Error)
	}
	if res.RowsAffected == 1 {
		log.Printf("[INFO] lock %s diambil alih (lock lama expired)", scope)
		return AcquireResult{Success: true, LockID: lockID, ExpiresAt: now.Add(time.Duration(durationMinutes) * time.Minute)}, nil
	}

	// masih dipegang orang lain
	var current catalogModel.SyncLockModel
	if err := s.db.WithContext(ctx).Where("sync_lock_scope = ?", scope).First(&current).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// holder lepas di antara dua statement; biar caller coba lagi
			return AcquireResult{Success: false}, nil
		}
		return AcquireResult{}, err
	}
	return AcquireResult{
		Success:       false,
		CurrentHolder: current.SyncLockAcquiredBy,
		ExpiresAt:     current.SyncLockExpiresAt,
	}, nil
}

// Release hanya berhasil dengan lockId yang cocok — caller yang kehilangan
// lock karena expiry tidak bisa melepas lock holder baru.
func (s *LockService) Release(ctx context.Context, scope string, lockID uuid.UUID) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("sync_lock_scope = ? AND sync_lock_id = ?", scope, lockID).
		Delete(&catalogModel.SyncLockModel{})
	if res.Error != nil {
		return false, fmt.Errorf("release lock %s: %w", scope, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Extend (heartbeat): perpanjang expires_at, lockId harus cocok dan lock
// belum expired.
func (s *LockService) Extend(ctx context.Context, scope string, lockID uuid.UUID, minutes int) (bool, error) {
	now := time.Now().UTC()
	res := s.db.WithContext(ctx).Model(&catalogModel.SyncLockModel{}).
		Where("sync_lock_scope = ? AND sync_lock_id = ? AND sync_lock_expires_at > ?", scope, lockID, now).
		Updates(map[string]interface{}{
			"sync_lock_expires_at":     now.Add(time.Duration(minutes) * time.Minute),
			"sync_lock_last_heartbeat": now,
		})
	if res.Error != nil {
		return false, fmt.Errorf("extend lock %s: %w", scope, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *LockService) IsLocked(ctx context.Context, scope string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&catalogModel.SyncLockModel{}).
		Where("sync_lock_scope = ? AND sync_lock_expires_at > ?", scope, time.Now().UTC()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CleanupExpired: sweep periodik; expired lock juga reclaim lazily di acquire.
func (s *LockService) CleanupExpired(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("sync_lock_expires_at <= ?", time.Now().UTC()).
		Delete(&catalogModel.SyncLockModel{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ForceRelease hapus lock tanpa cek lockID — break glass untuk operator
// kalau proses pemegang lock mati tanpa release dan expiry masih lama.
func (s *LockService) ForceRelease(ctx context.Context, scope string) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("sync_lock_scope = ?", scope).
		Delete(&catalogModel.SyncLockModel{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// List semua lock aktif (untuk endpoint operator).
func (s *LockService) List(ctx context.Context) ([]catalogModel.SyncLockModel, error) {
	var locks []catalogModel.SyncLockModel
	err := s.db.WithContext(ctx).Order("sync_lock_acquired_at ASC").Find(&locks).Error
	return locks, err
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	// sqlite (test) & pgx lewat string matching
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505")
}
