// file: internals/features/sync/service/teacher_handler.go
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
   TEACHER SYNC HANDLER
========================================================= */

type TeacherHandler struct {
	api sis.RosterAPI
}

func NewTeacherHandler(api sis.RosterAPI) *TeacherHandler {
	return &TeacherHandler{api: api}
}

func teacherModelFields(m *rosterModel.TeacherModel) map[string]string {
	return map[string]string{
		"first_name": m.TeacherFirstName,
		"last_name":  m.TeacherLastName,
		"email":      strOrEmpty(m.TeacherEmail),
		"title":      strOrEmpty(m.TeacherTitle),
	}
}

func teacherAPIFields(rec sis.Teacher) map[string]string {
	return map[string]string{
		"first_name": rec.FirstName,
		"last_name":  rec.LastName,
		"email":      rec.Email,
		"title":      rec.Title,
	}
}

func (h *TeacherHandler) SyncAll(sc *SyncContext) (uuid.UUID, error) {
	hist, err := beginHistory(sc, catalogModel.EntityTeacher, catalogModel.SyncTypeFull)
	if err != nil {
		return uuid.Nil, err
	}

	counts := EntityCounts{}

	records, err := h.api.ListTeachers(sc.Ctx, sc.School.SchoolExternalID)
	if err != nil {
		finishHistory(sc, hist, catalogModel.SyncStatusFailed, counts, err.Error())
		return hist.SyncHistoryID, fmt.Errorf("fetch teachers: %w", err)
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
			log.Printf("[ERROR] upsert teacher %s: %v", rec.ID, err)
		} else if changed {
			counts.Updated++
		}
		sc.Progress.Report(SyncProgress{
			SchoolID: sc.School.SchoolExternalID, SchoolName: sc.School.SchoolName,
			Entity: catalogModel.EntityTeacher, Counts: counts,
			Percent: percentOf(counts.Processed, len(records)),
		})
	}

	orphans, err := h.DetectOrphans(sc, hist.SyncHistoryID)
	if err != nil {
		log.Printf("[ERROR] orphan detection teachers: %v", err)
		counts.Failed++
	}
	counts.Deleted += orphans

	flushChanges(sc, hist)
	finishHistory(sc, hist, catalogModel.SyncStatusSuccess, counts, "")
	return hist.SyncHistoryID, nil
}

func (h *TeacherHandler) Upsert(sc *SyncContext, rec sis.Teacher) (bool, error) {
	now := sc.Now()

	var existing rosterModel.TeacherModel
	err := sc.Tenant.WithContext(sc.Ctx).Unscoped().
		Where("teacher_external_id = ?", rec.ID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		m := rosterModel.TeacherModel{
			TeacherExternalID:   rec.ID,
			TeacherFirstName:    rec.FirstName,
			TeacherLastName:     rec.LastName,
			TeacherEmail:        ptrOrNil(rec.Email),
			TeacherTitle:        ptrOrNil(rec.Title),
			TeacherLastSyncedAt: now,
		}
		if err := sc.Tenant.WithContext(sc.Ctx).Create(&m).Error; err != nil {
			return false, err
		}
		sc.Tracker.RecordCreated(catalogModel.EntityTeacher, rec.ID, teacherAPIFields(rec))
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if err := sc.Tenant.WithContext(sc.Ctx).Unscoped().Model(&existing).
		UpdateColumn("teacher_last_synced_at", now).Error; err != nil {
		return false, err
	}

	oldFields := teacherModelFields(&existing)
	newFields := teacherAPIFields(rec)
	diff := DiffFields(oldFields, newFields)
	wasDeleted := isSoftDeleted(existing.TeacherDeletedAt)

	if len(diff) == 0 && !wasDeleted {
		return false, nil
	}

	existing.TeacherFirstName = rec.FirstName
	existing.TeacherLastName = rec.LastName
	existing.TeacherEmail = ptrOrNil(rec.Email)
	existing.TeacherTitle = ptrOrNil(rec.Title)
	existing.TeacherLastSyncedAt = now
	existing.TeacherUpdatedAt = now
	existing.TeacherDeletedAt = gorm.DeletedAt{}

	if err := sc.Tenant.WithContext(sc.Ctx).Unscoped().Save(&existing).Error; err != nil {
		return false, err
	}
	sc.Tracker.RecordUpdated(catalogModel.EntityTeacher, rec.ID, diff, oldFields, newFields)
	return true, nil
}

func (h *TeacherHandler) HandleDelete(sc *SyncContext, externalID string) (bool, error) {
	var existing rosterModel.TeacherModel
	err := sc.Tenant.WithContext(sc.Ctx).
		Where("teacher_external_id = ?", externalID).
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
	sc.Tracker.RecordDeleted(catalogModel.EntityTeacher, externalID, teacherModelFields(&existing))
	return true, nil
}

func (h *TeacherHandler) DetectOrphans(sc *SyncContext, syncID uuid.UUID) (int, error) {
	var orphans []rosterModel.TeacherModel
	err := sc.Tenant.WithContext(sc.Ctx).
		Where("teacher_last_synced_at < ?", sc.StartTime).
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
			log.Printf("[ERROR] orphan teacher %s: %v", orphans[i].TeacherExternalID, err)
			continue
		}
		sc.Tracker.RecordOrphaned(catalogModel.EntityTeacher, orphans[i].TeacherExternalID, teacherModelFields(&orphans[i]))
		count++
	}
	return count, nil
}
