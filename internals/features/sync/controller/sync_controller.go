// file: internals/features/sync/controller/sync_controller.go
package controller

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	helper "sekolahsync_backend/internals/helpers"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
	"sekolahsync_backend/internals/features/sync/dto"
	"sekolahsync_backend/internals/features/sync/service"
)

type SyncController struct {
	DB           *gorm.DB
	Orchestrator *service.Orchestrator
	Locks        *service.LockService
	Health       *service.HealthService
}

func NewSyncController(db *gorm.DB, orch *service.Orchestrator, locks *service.LockService, health *service.HealthService) *SyncController {
	return &SyncController{DB: db, Orchestrator: orch, Locks: locks, Health: health}
}

/* ===================== RUN ===================== */
// POST /api/a/sync/run
func (ctrl *SyncController) RunSync(c *fiber.Ctx) error {
	var req dto.RunSyncRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Payload tidak valid")
	}
	v := validator.New()
	if err := v.Struct(req); err != nil {
		return helper.ValidationError(c, err)
	}

	initiatedBy, _ := c.Locals("operator_id").(string)
	summary, err := ctrl.Orchestrator.RunSync(c.Context(), service.SyncRequest{
		Scope:              service.SyncScope(req.Scope),
		DistrictExternalID: req.DistrictID,
		SchoolExternalID:   req.SchoolID,
		ForceFull:          req.ForceFull,
		InitiatedBy:        initiatedBy,
	})
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, err.Error())
	}

	// hasil sync mengubah staleness, jangan serve cache lama
	ctrl.Health.Cache().Reset()

	return helper.Success(c, "Sync selesai", summary)
}

/* ===================== HISTORY ===================== */
// GET /api/a/sync/history?school_id=&entity=&status=
func (ctrl *SyncController) ListHistory(c *fiber.Ctx) error {
	p := helper.ParseFiber(c, "start_time", "desc", helper.DefaultOpts)

	allowedSort := map[string]string{
		"start_time": "sync_history_start_time",
		"end_time":   "sync_history_end_time",
		"status":     "sync_history_status",
	}
	orderClause, err := p.SafeOrderClause(allowedSort, "start_time")
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Parameter sort tidak valid")
	}
	orderExpr := strings.TrimPrefix(orderClause, "ORDER BY ")

	q := ctrl.DB.WithContext(c.Context()).Model(&catalogModel.SyncHistoryModel{}).
		Joins("JOIN schools ON schools.school_id = sync_histories.sync_history_school_id")

	if schoolID := c.Query("school_id"); schoolID != "" {
		q = q.Where("schools.school_external_id = ?", schoolID)
	}
	if entity := c.Query("entity"); entity != "" {
		q = q.Where("sync_history_entity_type = ?", entity)
	}
	if status := c.Query("status"); status != "" {
		q = q.Where("sync_history_status = ?", status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Gagal menghitung riwayat sync")
	}

	type historyRow struct {
		catalogModel.SyncHistoryModel
		SchoolExternalID string `gorm:"column:school_external_id"`
		SchoolName       string `gorm:"column:school_name"`
	}
	var rows []historyRow
	if err := q.Select("sync_histories.*, schools.school_external_id, schools.school_name").
		Order(orderExpr).
		Limit(p.Limit()).Offset(p.Offset()).
		Find(&rows).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Gagal mengambil riwayat sync")
	}

	items := make([]dto.SyncHistoryResponse, 0, len(rows))
	for _, r := range rows {
		items = append(items, dto.FromHistoryModel(r.SyncHistoryModel, r.SchoolExternalID, r.SchoolName))
	}
	return helper.SuccessWithMeta(c, "OK", items, helper.BuildMeta(total, p))
}

/* ===================== CHANGE DETAILS ===================== */
// GET /api/a/sync/changes/:syncId
func (ctrl *SyncController) ListChanges(c *fiber.Ctx) error {
	syncID, err := uuid.Parse(c.Params("syncId"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "syncId bukan UUID")
	}

	p := helper.ParseFiber(c, "changed_at", "asc", helper.DefaultOpts)

	var total int64
	base := ctrl.DB.WithContext(c.Context()).Model(&catalogModel.SyncChangeDetailModel{}).
		Where("sync_change_detail_sync_id = ?", syncID)
	if err := base.Count(&total).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Gagal menghitung change detail")
	}

	var changes []catalogModel.SyncChangeDetailModel
	if err := base.
		Order("sync_change_detail_changed_at ASC").
		Limit(p.Limit()).Offset(p.Offset()).
		Find(&changes).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Gagal mengambil change detail")
	}

	items := make([]dto.ChangeDetailResponse, 0, len(changes))
	for _, m := range changes {
		items = append(items, dto.FromChangeDetailModel(m))
	}
	return helper.SuccessWithMeta(c, "OK", items, helper.BuildMeta(total, p))
}

/* ===================== WARNINGS ===================== */
// GET /api/a/sync/warnings?acknowledged=false
func (ctrl *SyncController) ListWarnings(c *fiber.Ctx) error {
	p := helper.ParseFiber(c, "created_at", "desc", helper.DefaultOpts)

	q := ctrl.DB.WithContext(c.Context()).Model(&catalogModel.SyncWarningModel{})
	if ack := c.Query("acknowledged"); ack != "" {
		q = q.Where("sync_warning_acknowledged = ?", ack == "true")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Gagal menghitung warning")
	}

	var warnings []catalogModel.SyncWarningModel
	if err := q.Order("sync_warning_created_at DESC").
		Limit(p.Limit()).Offset(p.Offset()).
		Find(&warnings).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Gagal mengambil warning")
	}

	items := make([]dto.SyncWarningResponse, 0, len(warnings))
	for _, m := range warnings {
		items = append(items, dto.FromWarningModel(m))
	}
	return helper.SuccessWithMeta(c, "OK", items, helper.BuildMeta(total, p))
}

// PATCH /api/a/sync/warnings/:id
func (ctrl *SyncController) AckWarning(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "id bukan UUID")
	}
	var req dto.AckWarningRequest
	if err := c.BodyParser(&req); err != nil {
		return helper.JsonError(c, fiber.StatusBadRequest, "Payload tidak valid")
	}

	res := ctrl.DB.WithContext(c.Context()).Model(&catalogModel.SyncWarningModel{}).
		Where("sync_warning_id = ?", id).
		Update("sync_warning_acknowledged", req.Acknowledged)
	if res.Error != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Gagal update warning")
	}
	if res.RowsAffected == 0 {
		return helper.JsonError(c, fiber.StatusNotFound, "Warning tidak ditemukan")
	}
	return helper.Success(c, "Warning diperbarui", fiber.Map{"sync_warning_id": id, "acknowledged": req.Acknowledged})
}

/* ===================== LOCKS ===================== */
// GET /api/a/sync/locks
func (ctrl *SyncController) ListLocks(c *fiber.Ctx) error {
	locks, err := ctrl.Locks.List(c.Context())
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Gagal mengambil lock")
	}
	now := time.Now().UTC()
	items := make([]dto.SyncLockResponse, 0, len(locks))
	for _, m := range locks {
		items = append(items, dto.FromLockModel(m, now))
	}
	return helper.Success(c, "OK", items)
}

// DELETE /api/a/sync/locks/:scope — break glass, dipakai kalau pemegang
// lock mati tanpa release. Scope di-path pakai format "school:<id>".
func (ctrl *SyncController) ForceReleaseLock(c *fiber.Ctx) error {
	scope := c.Params("scope")
	if scope == "" {
		return helper.JsonError(c, fiber.StatusBadRequest, "scope wajib diisi")
	}
	released, err := ctrl.Locks.ForceRelease(c.Context(), scope)
	if err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Gagal release lock")
	}
	if !released {
		return helper.JsonError(c, fiber.StatusNotFound, "Lock tidak ditemukan")
	}
	return helper.Success(c, "Lock dilepas", fiber.Map{"scope": scope})
}

/* ===================== HEALTH ===================== */
// GET /api/a/sync/health?school_id=
func (ctrl *SyncController) SyncHealth(c *fiber.Ctx) error {
	q := ctrl.DB.WithContext(c.Context()).Where("school_is_active = ?", true)
	if schoolID := c.Query("school_id"); schoolID != "" {
		q = q.Where("school_external_id = ?", schoolID)
	}
	var schools []catalogModel.SchoolModel
	if err := q.Find(&schools).Error; err != nil {
		return helper.JsonError(c, fiber.StatusInternalServerError, "Gagal mengambil daftar school")
	}
	if len(schools) == 0 {
		return helper.JsonError(c, fiber.StatusNotFound, "School tidak ditemukan")
	}

	results := make([]*service.SchoolHealth, 0, len(schools))
	for _, school := range schools {
		var district catalogModel.DistrictModel
		if err := ctrl.DB.WithContext(c.Context()).
			Where("district_id = ?", school.SchoolDistrictID).
			First(&district).Error; err != nil {
			return helper.JsonError(c, fiber.StatusInternalServerError, "Gagal mengambil district")
		}
		h, err := ctrl.Health.CheckSchool(c.Context(), district, school)
		if err != nil {
			return helper.JsonError(c, fiber.StatusInternalServerError, err.Error())
		}
		results = append(results, h)
	}
	return helper.Success(c, "OK", results)
}
