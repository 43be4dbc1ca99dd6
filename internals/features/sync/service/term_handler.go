// file: internals/features/sync/service/term_handler.go
package service

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
	rosterModel "sekolahsync_backend/internals/features/roster/model"
	"sekolahsync_backend/internals/features/sis"
)

/* =========================================================
   TERM SYNC HANDLER
   Term manual (dibuat operator) tidak pernah di-orphan.
========================================================= */

// ErrTermDataInvalid: data error (taxonomy c) — skip + warning, bukan abort.
var ErrTermDataInvalid = errors.New("term tanpa start/end date")

const termDateLayout = "2006-01-02"

type TermHandler struct {
	api sis.RosterAPI
}

func NewTermHandler(api sis.RosterAPI) *TermHandler {
	return &TermHandler{api: api}
}

func termModelFields(m *rosterModel.TermModel) map[string]string {
	return map[string]string{
		"name":       m.TermName,
		"start_date": m.TermStartDate.Format(termDateLayout),
		"end_date":   m.TermEndDate.Format(termDateLayout),
	}
}

func termAPIFields(rec sis.Term) map[string]string {
	return map[string]string{
		"name":       rec.Name,
		"start_date": rec.StartDate,
		"end_date":   rec.EndDate,
	}
}

func (h *TermHandler) SyncAll(sc *SyncContext) (uuid.UUID, error) {
	hist, err := beginHistory(sc, catalogModel.EntityTerm, catalogModel.SyncTypeFull)
	if err != nil {
		return uuid.Nil, err
	}

	counts := EntityCounts{}

	records, err := h.api.ListTerms(sc.Ctx, sc.School.SchoolExternalID)
	if err != nil {
		finishHistory(sc, hist, catalogModel.SyncStatusFailed, counts, err.Error())
		return hist.SyncHistoryID, fmt.Errorf("fetch terms: %w", err)
	}

	for _, rec := range records {
		if err := sc.Canceled(); err != nil {
			finishHistory(sc, hist, catalogModel.SyncStatusFailed, counts, err.Error())
			return hist.SyncHistoryID, err
		}
		changed, err := h.Upsert(sc, rec)
		counts.Processed++
		switch {
		case errors.Is(err, ErrTermDataInvalid):
			counts.Failed++
			msg := fmt.Sprintf("Term %s (%q) di-skip: start/end date kosong", rec.ID, rec.Name)
			log.Printf("[WARN] %s", msg)
			if werr := sc.Workshop.AddWarning(sc, hist.SyncHistoryID, catalogModel.WarningDataSkipped,
				catalogModel.EntityTerm, rec.ID, msg, 0); werr != nil {
				log.Printf("[ERROR] tulis warning term: %v", werr)
			}
		case err != nil:
			counts.Failed++
			log.Printf("[ERROR] upsert term %s: %v", rec.ID, err)
		case changed:
			counts.Updated++
		}
	}

	orphans, err := h.DetectOrphans(sc, hist.SyncHistoryID)
	if err != nil {
		log.Printf("[ERROR] orphan detection terms: %v", err)
		counts.Failed++
	}
	counts.Deleted += orphans

	flushChanges(sc, hist)
	finishHistory(sc, hist, catalogModel.SyncStatusSuccess, counts, "")
	return hist.SyncHistoryID, nil
}

func (h *TermHandler) Upsert(sc *SyncContext, rec sis.Term) (bool, error) {
	if rec.StartDate == "" || rec.EndDate == "" {
		return false, ErrTermDataInvalid
	}
	startDate, err := time.Parse(termDateLayout, rec.StartDate)
	if err != nil {
		return false, fmt.Errorf("%w: start %q", ErrTermDataInvalid, rec.StartDate)
	}
	endDate, err := time.Parse(termDateLayout, rec.EndDate)
	if err != nil {
		return false, fmt.Errorf("%w: end %q", ErrTermDataInvalid, rec.EndDate)
	}

	now := sc.Now()

	var existing rosterModel.TermModel
	err = sc.Tenant.WithContext(sc.Ctx).Unscoped().
		Where("term_external_id = ?", rec.ID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		m := rosterModel.TermModel{
			TermExternalID:   rec.ID,
			TermName:         rec.Name,
			TermStartDate:    startDate,
			TermEndDate:      endDate,
			TermLastSyncedAt: now,
		}
		if err := sc.Tenant.WithContext(sc.Ctx).Create(&m).Error; err != nil {
			return false, err
		}
		sc.Tracker.RecordCreated(catalogModel.EntityTerm, rec.ID, termAPIFields(rec))
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if err := sc.Tenant.WithContext(sc.Ctx).Unscoped().Model(&existing).
		UpdateColumn("term_last_synced_at", now).Error; err != nil {
		return false, err
	}

	oldFields := termModelFields(&existing)
	newFields := termAPIFields(rec)
	diff := DiffFields(oldFields, newFields)
	wasDeleted := isSoftDeleted(existing.TermDeletedAt)

	if len(diff) == 0 && !wasDeleted {
		return false, nil
	}

	existing.TermName = rec.Name
	existing.TermStartDate = startDate
	existing.TermEndDate = endDate
	existing.TermLastSyncedAt = now
	existing.TermUpdatedAt = now
	existing.TermDeletedAt = gorm.DeletedAt{}

	if err := sc.Tenant.WithContext(sc.Ctx).Unscoped().Save(&existing).Error; err != nil {
		return false, err
	}
	sc.Tracker.RecordUpdated(catalogModel.EntityTerm, rec.ID, diff, oldFields, newFields)
	return true, nil
}

func (h *TermHandler) HandleDelete(sc *SyncContext, externalID string) (bool, error) {
	var existing rosterModel.TermModel
	err := sc.Tenant.WithContext(sc.Ctx).
		Where("term_external_id = ?", externalID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := sc.Tenant.WithContext(sc.Ctx).Delete(&existing).Error; err != nil {
		return false, err
	}
	sc.Tracker.RecordDeleted(catalogModel.EntityTerm, externalID, termModelFields(&existing))
	return true, nil
}

// DetectOrphans: term manual dikecualikan — bukan milik upstream.
func (h *TermHandler) DetectOrphans(sc *SyncContext, syncID uuid.UUID) (int, error) {
	var orphans []rosterModel.TermModel
	err := sc.Tenant.WithContext(sc.Ctx).
		Where("term_last_synced_at < ? AND term_is_manual = ?", sc.StartTime, false).
		Find(&orphans).Error
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range orphans {
		if err := sc.Canceled(); err != nil {
			return count, err
		}
		if err := sc.Tenant.WithContext(sc.Ctx).Delete(&orphans[i]).Error; err != nil {
			log.Printf("[ERROR] orphan term %s: %v", orphans[i].TermExternalID, err)
			continue
		}
		sc.Tracker.RecordOrphaned(catalogModel.EntityTerm, orphans[i].TermExternalID, termModelFields(&orphans[i]))
		count++
	}
	return count, nil
}
