// file: internals/features/sync/dto/sync_dto.go
package dto

import (
	"time"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
)

/* ===================== REQUESTS ===================== */

type RunSyncRequest struct {
	Scope      string `json:"scope" validate:"required,oneof=all district school"`
	DistrictID string `json:"district_id" validate:"required_if=Scope district"`
	SchoolID   string `json:"school_id" validate:"required_if=Scope school"`
	ForceFull  bool   `json:"force_full"`
}

type AckWarningRequest struct {
	Acknowledged bool `json:"acknowledged"`
}

/* ===================== RESPONSES ===================== */

type SyncHistoryResponse struct {
	SyncHistoryID    string                      `json:"sync_history_id"`
	SchoolID         string                      `json:"school_id"`
	SchoolName       string                      `json:"school_name"`
	Entity           catalogModel.SyncEntityType `json:"entity"`
	SyncType         catalogModel.SyncType       `json:"sync_type"`
	Status           catalogModel.SyncStatus     `json:"status"`
	StartTime        time.Time                   `json:"start_time"`
	EndTime          *time.Time                  `json:"end_time,omitempty"`
	RecordsProcessed int                         `json:"records_processed"`
	RecordsUpdated   int                         `json:"records_updated"`
	RecordsFailed    int                         `json:"records_failed"`
	LastEventID      *string                     `json:"last_event_id,omitempty"`
	ErrorMessage     *string                     `json:"error_message,omitempty"`
}

func FromHistoryModel(m catalogModel.SyncHistoryModel, schoolExternalID, schoolName string) SyncHistoryResponse {
	return SyncHistoryResponse{
		SyncHistoryID:    m.SyncHistoryID.String(),
		SchoolID:         schoolExternalID,
		SchoolName:       schoolName,
		Entity:           m.SyncHistoryEntity,
		SyncType:         m.SyncHistorySyncType,
		Status:           m.SyncHistoryStatus,
		StartTime:        m.SyncHistoryStartTime,
		EndTime:          m.SyncHistoryEndTime,
		RecordsProcessed: m.SyncHistoryRecordsProcessed,
		RecordsUpdated:   m.SyncHistoryRecordsUpdated,
		RecordsFailed:    m.SyncHistoryRecordsFailed,
		LastEventID:      m.SyncHistoryLastEventID,
		ErrorMessage:     m.SyncHistoryErrorMessage,
	}
}

type ChangeDetailResponse struct {
	ChangeDetailID string                      `json:"change_detail_id"`
	Entity         catalogModel.SyncEntityType `json:"entity"`
	ExternalID     string                      `json:"external_id"`
	ChangeType     catalogModel.ChangeType     `json:"change_type"`
	FieldsChanged  string                      `json:"fields_changed,omitempty"`
	OldValues      interface{}                 `json:"old_values,omitempty"`
	NewValues      interface{}                 `json:"new_values,omitempty"`
	ChangedAt      time.Time                   `json:"changed_at"`
}

func FromChangeDetailModel(m catalogModel.SyncChangeDetailModel) ChangeDetailResponse {
	resp := ChangeDetailResponse{
		ChangeDetailID: m.SyncChangeDetailID.String(),
		Entity:         m.SyncChangeDetailEntity,
		ExternalID:     m.SyncChangeDetailEntityID,
		ChangeType:     m.SyncChangeDetailChangeType,
		FieldsChanged:  m.SyncChangeDetailFieldsChanged,
		ChangedAt:      m.SyncChangeDetailChangedAt,
	}
	if len(m.SyncChangeDetailOldValues) > 0 {
		resp.OldValues = m.SyncChangeDetailOldValues
	}
	if len(m.SyncChangeDetailNewValues) > 0 {
		resp.NewValues = m.SyncChangeDetailNewValues
	}
	return resp
}

type SyncWarningResponse struct {
	SyncWarningID       string                      `json:"sync_warning_id"`
	SyncID              string                      `json:"sync_id"`
	WarningType         catalogModel.WarningType    `json:"warning_type"`
	Entity              catalogModel.SyncEntityType `json:"entity"`
	EntityID            string                      `json:"entity_id"`
	Message             string                      `json:"message"`
	AffectedLinkedCount int                         `json:"affected_linked_count"`
	Acknowledged        bool                        `json:"acknowledged"`
	CreatedAt           time.Time                   `json:"created_at"`
}

func FromWarningModel(m catalogModel.SyncWarningModel) SyncWarningResponse {
	return SyncWarningResponse{
		SyncWarningID:       m.SyncWarningID.String(),
		SyncID:              m.SyncWarningSyncID.String(),
		WarningType:         m.SyncWarningType,
		Entity:              m.SyncWarningEntity,
		EntityID:            m.SyncWarningEntityID,
		Message:             m.SyncWarningMessage,
		AffectedLinkedCount: m.SyncWarningAffectedLinkedCount,
		Acknowledged:        m.SyncWarningAcknowledged,
		CreatedAt:           m.SyncWarningCreatedAt,
	}
}

type SyncLockResponse struct {
	Scope         string    `json:"scope"`
	LockID        string    `json:"lock_id"`
	AcquiredBy    string    `json:"acquired_by"`
	InitiatedBy   *string   `json:"initiated_by,omitempty"`
	MachineName   string    `json:"machine_name"`
	AcquiredAt    time.Time `json:"acquired_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
	Expired       bool      `json:"expired"`
}

func FromLockModel(m catalogModel.SyncLockModel, now time.Time) SyncLockResponse {
	return SyncLockResponse{
		Scope:         m.SyncLockScope,
		LockID:        m.SyncLockID.String(),
		AcquiredBy:    m.SyncLockAcquiredBy,
		InitiatedBy:   m.SyncLockInitiatedBy,
		MachineName:   m.SyncLockMachineName,
		AcquiredAt:    m.SyncLockAcquiredAt,
		ExpiresAt:     m.SyncLockExpiresAt,
		LastHeartbeat: m.SyncLockLastHeartbeat,
		Expired:       !m.SyncLockExpiresAt.After(now),
	}
}
