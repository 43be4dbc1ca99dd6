// file: internals/features/sync/service/workshop_protection.go
package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
	rosterModel "sekolahsync_backend/internals/features/roster/model"
)

/* =========================================================
   WORKSHOP PROTECTION
   Section yang di-link workshop tidak pernah dihapus secara
   destruktif: delete/disappearance upstream jadi SyncWarning,
   deleted_at lokal tidak disentuh, pending review manual.
   Kalau ada perubahan membership / grade level, prosedur
   rekonsiliasi downstream dipanggil dengan syncRunId.
========================================================= */

// WorkshopReconciler adalah port ke subsistem penjadwalan. Engine hanya
// bergantung ke interface ini; test pakai fake.
type WorkshopReconciler interface {
	Run(ctx context.Context, tenant *gorm.DB, syncRunID uuid.UUID) error
}

// ProcReconciler: adapter tipis ke prosedur database-side di tenant DB.
type ProcReconciler struct{}

func (ProcReconciler) Run(ctx context.Context, tenant *gorm.DB, syncRunID uuid.UUID) error {
	return tenant.WithContext(ctx).Exec("SELECT reconcile_workshop_assignments(?)", syncRunID).Error
}

type WorkshopProtection struct {
	reconciler WorkshopReconciler

	membershipChanged bool
	gradeChanged      bool
	affectedSections  map[string]int // section external id → net membership delta
}

func NewWorkshopProtection(reconciler WorkshopReconciler) *WorkshopProtection {
	return &WorkshopProtection{
		reconciler:       reconciler,
		affectedSections: make(map[string]int),
	}
}

// LinkedWorkshops: nama workshop yang me-link section ini. Kosong = tidak
// dilindungi.
func (w *WorkshopProtection) LinkedWorkshops(sc *SyncContext, sectionID uuid.UUID) ([]string, error) {
	var names []string
	err := sc.Tenant.WithContext(sc.Ctx).
		Table("workshop_sections").
		Joins("JOIN workshops ON workshops.workshop_id = workshop_sections.workshop_section_workshop_id").
		Where("workshop_sections.workshop_section_section_id = ?", sectionID).
		Pluck("workshops.workshop_name", &names).Error
	if err != nil {
		return nil, fmt.Errorf("lookup linked workshops: %w", err)
	}
	return names, nil
}

// NoteMembershipChange dicatat section handler saat keanggotaan student di
// section ber-workshop berubah. Net delta bisa nol (swap), tetap dihitung
// sebagai perubahan.
func (w *WorkshopProtection) NoteMembershipChange(sectionExternalID string, added, removed int) {
	if added == 0 && removed == 0 {
		return
	}
	w.membershipChanged = true
	w.affectedSections[sectionExternalID] += added - removed
}

func (w *WorkshopProtection) NoteGradeChange(studentExternalID string) {
	w.gradeChanged = true
	log.Printf("[INFO] grade level berubah untuk student %s", studentExternalID)
}

// GuardSectionDelete: true = section dilindungi, jangan dihapus. Selalu
// menghasilkan tepat satu warning section_deleted.
func (w *WorkshopProtection) GuardSectionDelete(sc *SyncContext, syncID uuid.UUID, section *rosterModel.SectionModel, reason string) (bool, error) {
	workshops, err := w.LinkedWorkshops(sc, section.SectionID)
	if err != nil {
		return false, err
	}
	if len(workshops) == 0 {
		return false, nil
	}

	msg := fmt.Sprintf("Section %q %s tapi masih di-link workshop: %s. Delete ditahan, perlu review manual.",
		section.SectionName, reason, strings.Join(workshops, ", "))
	if err := w.AddWarning(sc, syncID, catalogModel.WarningSectionDeleted, catalogModel.EntitySection,
		section.SectionExternalID, msg, len(workshops)); err != nil {
		return false, err
	}
	log.Printf("[WARN] %s", msg)
	return true, nil
}

func (w *WorkshopProtection) AddWarning(sc *SyncContext, syncID uuid.UUID, wtype catalogModel.WarningType,
	entity catalogModel.SyncEntityType, entityID, message string, linkedCount int) error {
	row := catalogModel.SyncWarningModel{
		SyncWarningSyncID:              syncID,
		SyncWarningType:                wtype,
		SyncWarningEntity:              entity,
		SyncWarningEntityID:            entityID,
		SyncWarningMessage:             message,
		SyncWarningAffectedLinkedCount: linkedCount,
	}
	return sc.Catalog.WithContext(sc.Ctx).Create(&row).Error
}

// Finalize: kalau run ini menyentuh data yang relevan buat workshop,
// jalankan rekonsiliasi downstream. Gagal = warning, bukan sync failure.
func (w *WorkshopProtection) Finalize(sc *SyncContext, syncRunID uuid.UUID) error {
	if !w.membershipChanged && !w.gradeChanged {
		return nil
	}

	if err := w.reconciler.Run(sc.Ctx, sc.Tenant, syncRunID); err != nil {
		msg := fmt.Sprintf("Rekonsiliasi workshop gagal untuk run %s: %v", syncRunID, err)
		log.Printf("[ERROR] %s", msg)
		return w.AddWarning(sc, syncRunID, catalogModel.WarningReconciliationFailed,
			catalogModel.EntitySection, "", msg, len(w.affectedSections))
	}
	log.Printf("[INFO] rekonsiliasi workshop selesai untuk run %s (sections terdampak: %d)", syncRunID, len(w.affectedSections))
	return nil
}
