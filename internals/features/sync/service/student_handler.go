// file: internals/features/sync/service/student_handler.go
package service

import (
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"
	"gorm.io/gorm"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
	rosterModel "sekolahsync_backend/internals/features/roster/model"
	"sekolahsync_backend/internals/features/sis"
)

/* =========================================================
   STUDENT SYNC HANDLER
========================================================= */

type StudentHandler struct {
	api sis.RosterAPI
}

func NewStudentHandler(api sis.RosterAPI) *StudentHandler {
	return &StudentHandler{api: api}
}

func studentModelFields(m *rosterModel.StudentModel) map[string]string {
	return map[string]string{
		"first_name":     m.StudentFirstName,
		"last_name":      m.StudentLastName,
		"email":          strOrEmpty(m.StudentEmail),
		"grade":          strOrEmpty(m.StudentGrade),
		"student_number": strOrEmpty(m.StudentNumber),
	}
}

func studentAPIFields(rec sis.Student) map[string]string {
	return map[string]string{
		"first_name":     rec.FirstName,
		"last_name":      rec.LastName,
		"email":          rec.Email,
		"grade":          rec.Grade,
		"student_number": rec.StudentNumber,
	}
}

// SyncAll: full fetch + reconcile + orphan detection. Return id row history.
func (h *StudentHandler) SyncAll(sc *SyncContext) (uuid.UUID, error) {
	hist, err := beginHistory(sc, catalogModel.EntityStudent, catalogModel.SyncTypeFull)
	if err != nil {
		return uuid.Nil, err
	}

	counts := EntityCounts{}

	records, err := h.api.ListStudents(sc.Ctx, sc.School.SchoolExternalID)
	if err != nil {
		finishHistory(sc, hist, catalogModel.SyncStatusFailed, counts, err.Error())
		return hist.SyncHistoryID, fmt.Errorf("fetch students: %w", err)
	}

	for _, rec := range records {
		if err := sc.Canceled(); err != nil {
			finishHistory(sc, hist, catalogModel.SyncStatusFailed, counts, err.Error())
			return hist.SyncHistoryID, err
		}
		changed, err := h.Upsert(sc, rec)
		counts.Processed++
		if err != nil {
			counts.Failed++
			log.Printf("[ERROR] upsert student %s: %v", rec.ID, err)
		} else if changed {
			counts.Updated++
		}
		sc.Progress.Report(SyncProgress{
			SchoolID: sc.School.SchoolExternalID, SchoolName: sc.School.SchoolName,
			Entity: catalogModel.EntityStudent, Counts: counts,
			Percent: percentOf(counts.Processed, len(records)),
		})
	}

	orphans, err := h.DetectOrphans(sc, hist.SyncHistoryID)
	if err != nil {
		log.Printf("[ERROR] orphan detection students: %v", err)
		counts.Failed++
	}
	counts.Deleted += orphans

	flushChanges(sc, hist)
	finishHistory(sc, hist, catalogModel.SyncStatusSuccess, counts, "")
	sc.Progress.Report(SyncProgress{
		SchoolID: sc.School.SchoolExternalID, SchoolName: sc.School.SchoolName,
		Entity: catalogModel.EntityStudent, Counts: counts, Percent: 100, Done: true,
	})
	return hist.SyncHistoryID, nil
}

// Upsert: create kalau belum ada; kalau ada, bandingkan field per field
// (ordinal). No-op tidak menulis apa pun selain last_synced_at.
func (h *StudentHandler) Upsert(sc *SyncContext, rec sis.Student) (bool, error) {
	now := sc.Now()

	var existing rosterModel.StudentModel
	err := sc.Tenant.WithContext(sc.Ctx).Unscoped().
		Where("student_external_id = ?", rec.ID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		m := rosterModel.StudentModel{
			StudentExternalID:   rec.ID,
			StudentFirstName:    rec.FirstName,
			StudentLastName:     rec.LastName,
			StudentEmail:        ptrOrNil(rec.Email),
			StudentGrade:        ptrOrNil(rec.Grade),
			StudentNumber:       ptrOrNil(rec.StudentNumber),
			StudentLastSyncedAt: now,
		}
		if err := sc.Tenant.WithContext(sc.Ctx).Create(&m).Error; err != nil {
			return false, err
		}
		sc.Tracker.RecordCreated(catalogModel.EntityStudent, rec.ID, studentAPIFields(rec))
		return true, nil
	}
	if err != nil {
		return false, err
	}

	// last_synced_at selalu di-stamp; UpdateColumn supaya updated_at tidak ikut
	if err := sc.Tenant.WithContext(sc.Ctx).Unscoped().Model(&existing).
		UpdateColumn("student_last_synced_at", now).Error; err != nil {
		return false, err
	}

	oldFields := studentModelFields(&existing)
	newFields := studentAPIFields(rec)
	diff := DiffFields(oldFields, newFields)
	wasDeleted := isSoftDeleted(existing.StudentDeletedAt)

	if len(diff) == 0 && !wasDeleted {
		return false, nil
	}

	if oldFields["grade"] != newFields["grade"] {
		sc.Workshop.NoteGradeChange(rec.ID)
	}

	existing.StudentFirstName = rec.FirstName
	existing.StudentLastName = rec.LastName
	existing.StudentEmail = ptrOrNil(rec.Email)
	existing.StudentGrade = ptrOrNil(rec.Grade)
	existing.StudentNumber = ptrOrNil(rec.StudentNumber)
	existing.StudentLastSyncedAt = now
	existing.StudentUpdatedAt = now
	existing.StudentDeletedAt = gorm.DeletedAt{} // restore kalau sempat soft-deleted

	if err := sc.Tenant.WithContext(sc.Ctx).Unscoped().Save(&existing).Error; err != nil {
		return false, err
	}
	sc.Tracker.RecordUpdated(catalogModel.EntityStudent, rec.ID, diff, oldFields, newFields)
	return true, nil
}

// HandleDelete: soft delete; record yang sudah deleted = no-op false.
func (h *StudentHandler) HandleDelete(sc *SyncContext, externalID string) (bool, error) {
	var existing rosterModel.StudentModel
	err := sc.Tenant.WithContext(sc.Ctx).
		Where("student_external_id = ?", externalID).
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
	sc.Tracker.RecordDeleted(catalogModel.EntityStudent, externalID, studentModelFields(&existing))
	return true, nil
}

// DetectOrphans: record aktif yang tidak terlihat run ini → soft delete.
func (h *StudentHandler) DetectOrphans(sc *SyncContext, syncID uuid.UUID) (int, error) {
	var orphans []rosterModel.StudentModel
	err := sc.Tenant.WithContext(sc.Ctx).
		Where("student_last_synced_at < ?", sc.StartTime).
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
			log.Printf("[ERROR] orphan student %s: %v", orphans[i].StudentExternalID, err)
			continue
		}
		sc.Tracker.RecordOrphaned(catalogModel.EntityStudent, orphans[i].StudentExternalID, studentModelFields(&orphans[i]))
		count++
	}
	return count, nil
}

func percentOf(done, total int) int {
	if total <= 0 {
		return 100
	}
	p := done * 100 / total
	if p > 100 {
		p = 100
	}
	return p
}
