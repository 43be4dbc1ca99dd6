// file: internals/features/sync/scheduler/scheduler.go
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
	"sekolahsync_backend/internals/features/sync/service"
)

/* =========================================================
   SCHEDULED SYNC
   Scan per menit: jadwal disimpan dalam jam/menit LOKAL
   district (ikut DST otomatis via tz database). De-dupe
   pakai last_triggered_utc supaya proses lain / restart
   tidak memicu dua kali di menit yang sama.
========================================================= */

func StartSyncScheduler(db *gorm.DB, orch *service.Orchestrator) {
	go func() {
		t := time.NewTicker(1 * time.Minute)
		defer t.Stop()
		for range t.C {
			runDueSchedules(db, orch)
		}
	}()
}

func runDueSchedules(db *gorm.DB, orch *service.Orchestrator) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Hour)
	defer cancel()

	var schedules []catalogModel.SyncScheduleModel
	if err := db.WithContext(ctx).
		Where("sync_schedule_enabled = ?", true).
		Find(&schedules).Error; err != nil {
		log.Printf("[SCHEDULER ERROR] Gagal ambil jadwal sync: %v", err)
		return
	}

	now := time.Now().UTC()
	for _, sched := range schedules {
		var district catalogModel.DistrictModel
		if err := db.WithContext(ctx).
			Where("district_id = ?", sched.SyncScheduleDistrictID).
			First(&district).Error; err != nil {
			log.Printf("[SCHEDULER ERROR] District jadwal %s tidak ketemu: %v", sched.SyncScheduleID, err)
			continue
		}

		local := service.NewLocalTime(district.DistrictTimeZone)
		if !isDue(sched, local.ToLocal(now), now) {
			continue
		}

		// claim dulu sebelum jalan; RowsAffected 0 = proses lain sudah ambil
		claim := db.WithContext(ctx).Model(&catalogModel.SyncScheduleModel{}).
			Where("sync_schedule_id = ? AND (sync_schedule_last_triggered_utc IS NULL OR sync_schedule_last_triggered_utc < ?)",
				sched.SyncScheduleID, now.Add(-2*time.Minute)).
			UpdateColumn("sync_schedule_last_triggered_utc", now)
		if claim.Error != nil || claim.RowsAffected == 0 {
			continue
		}

		log.Printf("[SCHEDULER] Jadwal sync district %s jalan (%02d:%02d %s)",
			district.DistrictExternalID, sched.SyncScheduleLocalHour, sched.SyncScheduleLocalMinute, district.DistrictTimeZone)

		summary, err := orch.RunSync(ctx, service.SyncRequest{
			Scope:              service.ScopeOneDistrict,
			DistrictExternalID: district.DistrictExternalID,
			InitiatedBy:        "scheduler",
		})
		if err != nil {
			log.Printf("[SCHEDULER ERROR] Sync district %s gagal: %v", district.DistrictExternalID, err)
			continue
		}
		log.Printf("[SCHEDULER] District %s selesai: ok=%d gagal=%d locked=%d",
			district.DistrictExternalID, summary.SchoolsSynced, summary.SchoolsFailed, summary.SchoolsLocked)
	}
}

func isDue(sched catalogModel.SyncScheduleModel, localNow, utcNow time.Time) bool {
	if localNow.Hour() != sched.SyncScheduleLocalHour || localNow.Minute() != sched.SyncScheduleLocalMinute {
		return false
	}
	if len(sched.SyncScheduleDaysOfWeek) > 0 {
		var days []int
		if err := sonic.Unmarshal(sched.SyncScheduleDaysOfWeek, &days); err == nil && len(days) > 0 {
			match := false
			for _, d := range days {
				if d == int(localNow.Weekday()) {
					match = true
					break
				}
			}
			if !match {
				return false
			}
		}
	}
	// sudah trigger di menit ini?
	if sched.SyncScheduleLastTriggeredUtc != nil && utcNow.Sub(*sched.SyncScheduleLastTriggeredUtc) < 2*time.Minute {
		return false
	}
	return true
}

/* =========================================================
   LOCK SWEEPER — lock expired di-reclaim lazily saat acquire,
   sweep ini cuma bersih-bersih row mati biar tabel kecil.
========================================================= */

func StartLockSweeper(locks *service.LockService) {
	go func() {
		for {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := locks.CleanupExpired(ctx)
			cancel()
			if err != nil {
				log.Printf("[SWEEPER ERROR] Gagal hapus lock expired: %v", err)
			} else if n > 0 {
				log.Printf("[SWEEPER] %d lock expired dihapus", n)
			}
			time.Sleep(10 * time.Minute)
		}
	}()
}
