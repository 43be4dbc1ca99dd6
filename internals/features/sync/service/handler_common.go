// file: internals/features/sync/service/handler_common.go
package service

import (
	"log"

	"gorm.io/gorm"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
)

/* =========================================================
   Helper bersama untuk entity sync handler
========================================================= */

// beginHistory bikin row sync_histories status in_progress; satu row per
// entity-type per run.
func beginHistory(sc *SyncContext, entity catalogModel.SyncEntityType, syncType catalogModel.SyncType) (*catalogModel.SyncHistoryModel, error) {
	h := &catalogModel.SyncHistoryModel{
		SyncHistorySchoolID:  sc.School.SchoolID,
		SyncHistoryEntity:    entity,
		SyncHistorySyncType:  syncType,
		SyncHistoryStartTime: sc.StartTime,
		SyncHistoryStatus:    catalogModel.SyncStatusInProgress,
	}
	if err := sc.Catalog.WithContext(sc.Ctx).Create(h).Error; err != nil {
		return nil, err
	}
	return h, nil
}

// finishHistory tutup row history. Setelah end_time terisi, row immutable.
func finishHistory(sc *SyncContext, h *catalogModel.SyncHistoryModel, status catalogModel.SyncStatus, counts EntityCounts, errMsg string) {
	now := sc.Now()
	updates := map[string]interface{}{
		"sync_history_end_time":          now,
		"sync_history_status":            status,
		"sync_history_records_processed": counts.Processed,
		"sync_history_records_updated":   counts.Updated,
		"sync_history_records_failed":    counts.Failed,
	}
	if errMsg != "" {
		updates["sync_history_error_message"] = errMsg
	}
	if err := sc.Catalog.WithContext(sc.Ctx).Model(h).Updates(updates).Error; err != nil {
		log.Printf("[ERROR] gagal tutup sync history %s: %v", h.SyncHistoryID, err)
	}
}

// flushChanges: batch audit trail di akhir run handler; gagal flush tidak
// membatalkan sync, cuma kehilangan audit untuk run itu.
func flushChanges(sc *SyncContext, h *catalogModel.SyncHistoryModel) {
	if err := sc.Tracker.Flush(sc.Catalog, h.SyncHistoryID); err != nil {
		log.Printf("[ERROR] flush change detail %s: %v", h.SyncHistoryEntity, err)
	}
}

func strOrEmpty(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func ptrOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func isSoftDeleted(d gorm.DeletedAt) bool { return d.Valid }
