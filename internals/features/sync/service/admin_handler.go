// file: internals/features/sync/service/admin_handler.go
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
   SCHOOL ADMIN SYNC HANDLER
   Akun auth source eksternal (bypass) tidak pernah disentuh.
   Orphan detection pakai updated_at, bukan last_synced_at —
   sighting upsert selalu stamp updated_at.
========================================================= */

type AdminHandler struct {
	api sis.RosterAPI
}

func NewAdminHandler(api sis.RosterAPI) *AdminHandler {
	return &AdminHandler{api: api}
}

func adminModelFields(m *rosterModel.SchoolAdminModel) map[string]string {
	return map[string]string{
		"first_name": m.SchoolAdminFirstName,
		"last_name":  m.SchoolAdminLastName,
		"email":      strOrEmpty(m.SchoolAdminEmail),
	}
}

func adminAPIFields(rec sis.Admin) map[string]string {
	return map[string]string{
		"first_name": rec.FirstName,
		"last_name":  rec.LastName,
		"email":      rec.Email,
	}
}

func (h *AdminHandler) SyncAll(sc *SyncContext) (uuid.UUID, error) {
	hist, err := beginHistory(sc, catalogModel.EntityAdmin, catalogModel.SyncTypeFull)
	if err != nil {
		return uuid.Nil, err
	}

	counts := EntityCounts{}

	records, err := h.api.ListAdmins(sc.Ctx, sc.School.SchoolExternalID)
	if err != nil {
		finishHistory(sc, hist, catalogModel.SyncStatusFailed, counts, err.Error())
		return hist.SyncHistoryID, fmt.Errorf("fetch admins: %w", err)
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
			log.Printf("[ERROR] upsert admin %s: %v", rec.ID, err)
		} else if changed {
			counts.Updated++
		}
	}

	orphans, err := h.DetectOrphans(sc, hist.SyncHistoryID)
	if err != nil {
		log.Printf("[ERROR] orphan detection admins: %v", err)
		counts.Failed++
	}
	counts.Deleted += orphans

	flushChanges(sc, hist)
	finishHistory(sc, hist, catalogModel.SyncStatusSuccess, counts, "")
	return hist.SyncHistoryID, nil
}

func (h *AdminHandler) Upsert(sc *SyncContext, rec sis.Admin) (bool, error) {
	now := sc.Now()

	var existing rosterModel.SchoolAdminModel
	err := sc.Tenant.WithContext(sc.Ctx).Unscoped().
		Where("school_admin_external_id = ?", rec.ID).
		First(&existing).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		m := rosterModel.SchoolAdminModel{
			SchoolAdminExternalID: rec.ID,
			SchoolAdminFirstName:  rec.FirstName,
			SchoolAdminLastName:   rec.LastName,
			SchoolAdminEmail:      ptrOrNil(rec.Email),
			SchoolAdminAuthSource: rosterModel.AdminAuthSIS,
		}
		if err := sc.Tenant.WithContext(sc.Ctx).Create(&m).Error; err != nil {
			return false, err
		}
		sc.Tracker.RecordCreated(catalogModel.EntityAdmin, rec.ID, adminAPIFields(rec))
		return true, nil
	}
	if err != nil {
		return false, err
	}

	// akun externally-managed: jangan pernah disentuh
	if existing.SchoolAdminAuthSource != rosterModel.AdminAuthSIS {
		return false, nil
	}

	// updated_at adalah sighting marker admin (pengganti last_synced_at)
	if err := sc.Tenant.WithContext(sc.Ctx).Unscoped().Model(&existing).
		UpdateColumn("school_admin_updated_at", now).Error; err != nil {
		return false, err
	}

	oldFields := adminModelFields(&existing)
	newFields := adminAPIFields(rec)
	diff := DiffFields(oldFields, newFields)
	wasDeleted := isSoftDeleted(existing.SchoolAdminDeletedAt)

	if len(diff) == 0 && !wasDeleted {
		return false, nil
	}

	existing.SchoolAdminFirstName = rec.FirstName
	existing.SchoolAdminLastName = rec.LastName
	existing.SchoolAdminEmail = ptrOrNil(rec.Email)
	existing.SchoolAdminUpdatedAt = now
	existing.SchoolAdminDeletedAt = gorm.DeletedAt{}

	if err := sc.Tenant.WithContext(sc.Ctx).Unscoped().Save(&existing).Error; err != nil {
		return false, err
	}
	sc.Tracker.RecordUpdated(catalogModel.EntityAdmin, rec.ID, diff, oldFields, newFields)
	return true, nil
}

func (h *AdminHandler) HandleDelete(sc *SyncContext, externalID string) (bool, error) {
	var existing rosterModel.SchoolAdminModel
	err := sc.Tenant.WithContext(sc.Ctx).
		Where("school_admin_external_id = ?", externalID).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if existing.SchoolAdminAuthSource != rosterModel.AdminAuthSIS {
		return false, nil
	}

	if err := sc.Tenant.WithContext(sc.Ctx).Delete(&existing).Error; err != nil {
		return false, err
	}
	sc.Tracker.RecordDeleted(catalogModel.EntityAdmin, externalID, adminModelFields(&existing))
	return true, nil
}

func (h *AdminHandler) DetectOrphans(sc *SyncContext, syncID uuid.UUID) (int, error) {
	var orphans []rosterModel.SchoolAdminModel
	err := sc.Tenant.WithContext(sc.Ctx).
		Where("school_admin_updated_at < ? AND school_admin_auth_source = ?",
			sc.StartTime, rosterModel.AdminAuthSIS).
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
			log.Printf("[ERROR] orphan admin %s: %v", orphans[i].SchoolAdminExternalID, err)
			continue
		}
		sc.Tracker.RecordOrphaned(catalogModel.EntityAdmin, orphans[i].SchoolAdminExternalID, adminModelFields(&orphans[i]))
		count++
	}
	return count, nil
}
