// file: internals/features/sync/service/section_handler.go
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
   SECTION SYNC HANDLER
   - field di-diff seperti entity lain
   - junction teacher/student di-replace penuh tiap upsert
     (set membership idempoten di bawah full replacement)
   - delete & orphan lewat workshop protection dulu
========================================================= */

type SectionHandler struct {
	api sis.RosterAPI
}

func NewSectionHandler(api sis.RosterAPI) *SectionHandler {
	return &SectionHandler{api: api}
}

func sectionModelFields(m *rosterModel.SectionModel) map[string]string {
	termID := ""
	if m.SectionTermID != nil {
		termID = m.SectionTermID.String()
	}
	return map[string]string{
		"name":    m.SectionName,
		"period":  strOrEmpty(m.SectionPeriod),
		"subject": strOrEmpty(m.SectionSubject),
		"term_id": termID,
	}
}

func (h *SectionHandler) sectionNewFields(sc *SyncContext, rec sis.Section) (map[string]string, *uuid.UUID) {
	var termID *uuid.UUID
	if rec.TermID != "" {
		var term rosterModel.TermModel
		err := sc.Tenant.WithContext(sc.Ctx).
			Select("term_id").
			Where("term_external_id = ?", rec.TermID).
			First(&term).Error
		if err == nil {
			termID = &term.TermID
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[ERROR] resolve term %s: %v", rec.TermID, err)
		} else {
			log.Printf("[WARN] section %s refer term %s yang belum ada", rec.ID, rec.TermID)
		}
	}
	termStr := ""
	if termID != nil {
		termStr = termID.String()
	}
	return map[string]string{
		"name":    rec.Name,
		"period":  rec.Period,
		"subject": rec.Subject,
		"term_id": termStr,
	}, termID
}

func (h *SectionHandler) SyncAll(sc *SyncContext) (uuid.UUID, error) {
	hist, err := beginHistory(sc, catalogModel.EntitySection, catalogModel.SyncTypeFull)
	if err != nil {
		return uuid.Nil, err
	}

	counts := EntityCounts{}

	records, err := h.api.ListSections(sc.Ctx, sc.School.SchoolExternalID)
	if err != nil {
		finishHistory(sc, hist, catalogModel.SyncStatusFailed, counts, err.Error())
		return hist.SyncHistoryID, fmt.Errorf("fetch sections: %w", err)
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
			log.Printf("[ERROR] upsert section %s: %v", rec.ID, err)
		} else if changed {
			counts.Updated++
		}
		sc.Progress.Report(SyncProgress{
			SchoolID: sc.School.SchoolExternalID, SchoolName: sc.School.SchoolName,
			Entity: catalogModel.EntitySection, Counts: counts,
			Percent: percentOf(counts.Processed, len(records)),
		})
	}

	orphans, err := h.DetectOrphans(sc, hist.SyncHistoryID)
	if err != nil {
		log.Printf("[ERROR] orphan detection sections: %v", err)
		counts.Failed++
	}
	counts.Deleted += orphans

	flushChanges(sc, hist)
	finishHistory(sc, hist, catalogModel.SyncStatusSuccess, counts, "")
	return hist.SyncHistoryID, nil
}

func (h *SectionHandler) Upsert(sc *SyncContext, rec sis.Section) (bool, error) {
	now := sc.Now()

	var existing rosterModel.SectionModel
	err := sc.Tenant.WithContext(sc.Ctx).Unscoped().
		Where("section_external_id = ?", rec.ID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		newFields, termID := h.sectionNewFields(sc, rec)
		m := rosterModel.SectionModel{
			SectionExternalID:   rec.ID,
			SectionName:         rec.Name,
			SectionPeriod:       ptrOrNil(rec.Period),
			SectionSubject:      ptrOrNil(rec.Subject),
			SectionTermID:       termID,
			SectionLastSyncedAt: now,
		}
		if err := sc.Tenant.WithContext(sc.Ctx).Create(&m).Error; err != nil {
			return false, err
		}
		sc.Tracker.RecordCreated(catalogModel.EntitySection, rec.ID, newFields)
		if err := h.replaceMembership(sc, &m, rec); err != nil {
			return true, fmt.Errorf("membership section %s: %w", rec.ID, err)
		}
		return true, nil
	}
	if err != nil {
		return false, err
	}

	if err := sc.Tenant.WithContext(sc.Ctx).Unscoped().Model(&existing).
		UpdateColumn("section_last_synced_at", now).Error; err != nil {
		return false, err
	}

	oldFields := sectionModelFields(&existing)
	newFields, termID := h.sectionNewFields(sc, rec)
	diff := DiffFields(oldFields, newFields)
	wasDeleted := isSoftDeleted(existing.SectionDeletedAt)

	changed := len(diff) > 0 || wasDeleted
	if changed {
		existing.SectionName = rec.Name
		existing.SectionPeriod = ptrOrNil(rec.Period)
		existing.SectionSubject = ptrOrNil(rec.Subject)
		existing.SectionTermID = termID
		existing.SectionLastSyncedAt = now
		existing.SectionUpdatedAt = now
		existing.SectionDeletedAt = gorm.DeletedAt{}
		if err := sc.Tenant.WithContext(sc.Ctx).Unscoped().Save(&existing).Error; err != nil {
			return false, err
		}
		sc.Tracker.RecordUpdated(catalogModel.EntitySection, rec.ID, diff, oldFields, newFields)
	}

	if err := h.replaceMembership(sc, &existing, rec); err != nil {
		return changed, fmt.Errorf("membership section %s: %w", rec.ID, err)
	}
	return changed, nil
}

// replaceMembership: hapus semua junction lalu isi ulang sesuai membership
// sekarang (diff-free). Section ber-workshop dicatat net delta-nya untuk
// rekonsiliasi downstream.
func (h *SectionHandler) replaceMembership(sc *SyncContext, section *rosterModel.SectionModel, rec sis.Section) error {
	linked, err := sc.Workshop.LinkedWorkshops(sc, section.SectionID)
	if err != nil {
		return err
	}

	// snapshot membership lama sebelum di-replace (buat hitung delta)
	var oldStudentIDs []uuid.UUID
	if err := sc.Tenant.WithContext(sc.Ctx).
		Model(&rosterModel.StudentSectionModel{}).
		Where("student_section_section_id = ?", section.SectionID).
		Pluck("student_section_student_id", &oldStudentIDs).Error; err != nil {
		return err
	}

	if err := sc.Tenant.WithContext(sc.Ctx).
		Where("student_section_section_id = ?", section.SectionID).
		Delete(&rosterModel.StudentSectionModel{}).Error; err != nil {
		return err
	}
	if err := sc.Tenant.WithContext(sc.Ctx).
		Where("teacher_section_section_id = ?", section.SectionID).
		Delete(&rosterModel.TeacherSectionModel{}).Error; err != nil {
		return err
	}

	newStudentIDs, err := h.resolveStudents(sc, rec.StudentIDs)
	if err != nil {
		return err
	}
	for _, sid := range newStudentIDs {
		row := rosterModel.StudentSectionModel{
			StudentSectionSectionID: section.SectionID,
			StudentSectionStudentID: sid,
		}
		if err := sc.Tenant.WithContext(sc.Ctx).Create(&row).Error; err != nil {
			return err
		}
	}

	teacherIDs, err := h.resolveTeachers(sc, rec.TeacherIDs)
	if err != nil {
		return err
	}
	for _, tid := range teacherIDs {
		row := rosterModel.TeacherSectionModel{
			TeacherSectionSectionID: section.SectionID,
			TeacherSectionTeacherID: tid,
		}
		if err := sc.Tenant.WithContext(sc.Ctx).Create(&row).Error; err != nil {
			return err
		}
	}

	if len(linked) > 0 {
		added, removed := membershipDelta(oldStudentIDs, newStudentIDs)
		sc.Workshop.NoteMembershipChange(section.SectionExternalID, added, removed)
	}
	return nil
}

func (h *SectionHandler) resolveStudents(sc *SyncContext, externalIDs []string) ([]uuid.UUID, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	type row struct {
		StudentID         uuid.UUID `gorm:"column:student_id"`
		StudentExternalID string    `gorm:"column:student_external_id"`
	}
	var rows []row
	if err := sc.Tenant.WithContext(sc.Ctx).
		Model(&rosterModel.StudentModel{}).
		Select("student_id, student_external_id").
		Where("student_external_id IN ?", externalIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	byExt := make(map[string]uuid.UUID, len(rows))
	for _, r := range rows {
		byExt[r.StudentExternalID] = r.StudentID
	}
	var ids []uuid.UUID
	for _, ext := range externalIDs {
		id, ok := byExt[ext]
		if !ok {
			log.Printf("[WARN] student %s belum ada di tenant, skip membership", ext)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (h *SectionHandler) resolveTeachers(sc *SyncContext, externalIDs []string) ([]uuid.UUID, error) {
	if len(externalIDs) == 0 {
		return nil, nil
	}
	type row struct {
		TeacherID         uuid.UUID `gorm:"column:teacher_id"`
		TeacherExternalID string    `gorm:"column:teacher_external_id"`
	}
	var rows []row
	if err := sc.Tenant.WithContext(sc.Ctx).
		Model(&rosterModel.TeacherModel{}).
		Select("teacher_id, teacher_external_id").
		Where("teacher_external_id IN ?", externalIDs).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	byExt := make(map[string]uuid.UUID, len(rows))
	for _, r := range rows {
		byExt[r.TeacherExternalID] = r.TeacherID
	}
	var ids []uuid.UUID
	for _, ext := range externalIDs {
		id, ok := byExt[ext]
		if !ok {
			log.Printf("[WARN] teacher %s belum ada di tenant, skip membership", ext)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func membershipDelta(old, new []uuid.UUID) (added, removed int) {
	oldSet := make(map[uuid.UUID]struct{}, len(old))
	for _, id := range old {
		oldSet[id] = struct{}{}
	}
	newSet := make(map[uuid.UUID]struct{}, len(new))
	for _, id := range new {
		newSet[id] = struct{}{}
		if _, ok := oldSet[id]; !ok {
			added++
		}
	}
	for _, id := range old {
		if _, ok := newSet[id]; !ok {
			removed++
		}
	}
	return added, removed
}

// HandleDelete: section ber-workshop tidak pernah dihapus — warning saja.
func (h *SectionHandler) HandleDelete(sc *SyncContext, syncID uuid.UUID, externalID string) (bool, error) {
	var existing rosterModel.SectionModel
	err := sc.Tenant.WithContext(sc.Ctx).
		Where("section_external_id = ?", externalID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	protected, err := sc.Workshop.GuardSectionDelete(sc, syncID, &existing, "dihapus upstream")
	if err != nil {
		return false, err
	}
	if protected {
		return false, nil
	}

	if err := sc.Tenant.WithContext(sc.Ctx).Delete(&existing).Error; err != nil {
		return false, err
	}
	sc.Tracker.RecordDeleted(catalogModel.EntitySection, externalID, sectionModelFields(&existing))
	return true, nil
}

func (h *SectionHandler) DetectOrphans(sc *SyncContext, syncID uuid.UUID) (int, error) {
	var orphans []rosterModel.SectionModel
	err := sc.Tenant.WithContext(sc.Ctx).
		Where("section_last_synced_at < ?", sc.StartTime).
		Find(&orphans).Error
	if err != nil {
		return 0, err
	}

	count := 0
	for i := range orphans {
		if err := sc.Canceled(); err != nil {
			return count, err
		}
		protected, err := sc.Workshop.GuardSectionDelete(sc, syncID, &orphans[i], "tidak terlihat di full sync")
		if err != nil {
			log.Printf("[ERROR] guard section %s: %v", orphans[i].SectionExternalID, err)
			continue
		}
		if protected {
			continue
		}
		if err := sc.Tenant.WithContext(sc.Ctx).Delete(&orphans[i]).Error; err != nil {
			log.Printf("[ERROR] orphan section %s: %v", orphans[i].SectionExternalID, err)
			continue
		}
		sc.Tracker.RecordOrphaned(catalogModel.EntitySection, orphans[i].SectionExternalID, sectionModelFields(&orphans[i]))
		count++
	}
	return count, nil
}
