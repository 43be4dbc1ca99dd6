// file: internals/features/sync/service/change_tracker.go
package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
)

/* =========================================================
   CHANGE TRACKER
   Audit sink murni: diff field lama/baru, antri per run,
   flush sekali di akhir run handler (bukan per record).
========================================================= */

type ChangeEntry struct {
	Entity     catalogModel.SyncEntityType
	EntityID   string
	ChangeType catalogModel.ChangeType
	Fields     []string
	Old        map[string]string
	New        map[string]string
}

type ChangeTracker struct {
	pending []ChangeEntry
}

func NewChangeTracker() *ChangeTracker {
	return &ChangeTracker{}
}

// DiffFields: nama field yang beda, perbandingan ordinal exact
// (case-sensitive, tanpa normalisasi culture).
func DiffFields(old, new map[string]string) []string {
	var fields []string
	for k, nv := range new {
		if old[k] != nv {
			fields = append(fields, k)
		}
	}
	for k := range old {
		if _, ok := new[k]; !ok {
			fields = append(fields, k)
		}
	}
	sort.Strings(fields)
	return fields
}

func (t *ChangeTracker) Record(e ChangeEntry) {
	t.pending = append(t.pending, e)
}

func (t *ChangeTracker) RecordCreated(entity catalogModel.SyncEntityType, entityID string, newValues map[string]string) {
	t.Record(ChangeEntry{Entity: entity, EntityID: entityID, ChangeType: catalogModel.ChangeCreated, New: newValues})
}

func (t *ChangeTracker) RecordUpdated(entity catalogModel.SyncEntityType, entityID string, fields []string, old, new map[string]string) {
	t.Record(ChangeEntry{Entity: entity, EntityID: entityID, ChangeType: catalogModel.ChangeUpdated, Fields: fields, Old: old, New: new})
}

func (t *ChangeTracker) RecordDeleted(entity catalogModel.SyncEntityType, entityID string, oldValues map[string]string) {
	t.Record(ChangeEntry{Entity: entity, EntityID: entityID, ChangeType: catalogModel.ChangeDeleted, Old: oldValues})
}

func (t *ChangeTracker) RecordOrphaned(entity catalogModel.SyncEntityType, entityID string, oldValues map[string]string) {
	t.Record(ChangeEntry{Entity: entity, EntityID: entityID, ChangeType: catalogModel.ChangeOrphaned, Old: oldValues})
}

func (t *ChangeTracker) PendingCount() int { return len(t.pending) }

// Flush tulis semua entry pending ke sync_change_details dalam satu batch
// insert, lalu kosongkan antrean.
func (t *ChangeTracker) Flush(catalog *gorm.DB, syncID uuid.UUID) error {
	if len(t.pending) == 0 {
		return nil
	}

	rows := make([]catalogModel.SyncChangeDetailModel, 0, len(t.pending))
	for _, e := range t.pending {
		row := catalogModel.SyncChangeDetailModel{
			SyncChangeDetailSyncID:        syncID,
			SyncChangeDetailEntity:        e.Entity,
			SyncChangeDetailEntityID:      e.EntityID,
			SyncChangeDetailChangeType:    e.ChangeType,
			SyncChangeDetailFieldsChanged: strings.Join(e.Fields, ","),
		}
		if len(e.Old) > 0 {
			b, err := json.Marshal(e.Old)
			if err != nil {
				return fmt.Errorf("marshal old values %s/%s: %w", e.Entity, e.EntityID, err)
			}
			row.SyncChangeDetailOldValues = b
		}
		if len(e.New) > 0 {
			b, err := json.Marshal(e.New)
			if err != nil {
				return fmt.Errorf("marshal new values %s/%s: %w", e.Entity, e.EntityID, err)
			}
			row.SyncChangeDetailNewValues = b
		}
		rows = append(rows, row)
	}

	if err := catalog.CreateInBatches(rows, 200).Error; err != nil {
		return fmt.Errorf("flush change details: %w", err)
	}
	t.pending = t.pending[:0]
	return nil
}
