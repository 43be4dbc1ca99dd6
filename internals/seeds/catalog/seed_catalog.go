package catalog

import (
	"encoding/json"
	"log"
	"os"

	"gorm.io/gorm"

	catalogModel "sekolahsync_backend/internals/features/catalog/model"
)

type DistrictSeed struct {
	ExternalID   string `json:"external_id"`
	Name         string `json:"name"`
	SecretPrefix string `json:"secret_prefix"`
	TimeZone     string `json:"time_zone"`
}

type SchoolSeed struct {
	DistrictExternalID string `json:"district_external_id"`
	ExternalID         string `json:"external_id"`
	Name               string `json:"name"`
	DatabaseRef        string `json:"database_ref"`
}

// SeedDistrictsFromJSON: insert district yang belum ada (dicek per external_id).
func SeedDistrictsFromJSON(db *gorm.DB, filePath string) {
	log.Println("📥 Membaca file:", filePath)

	file, err := os.ReadFile(filePath)
	if err != nil {
		log.Printf("❌ Gagal membaca file JSON: %v", err)
		return
	}

	var seeds []DistrictSeed
	if err := json.Unmarshal(file, &seeds); err != nil {
		log.Printf("❌ Gagal decode JSON: %v", err)
		return
	}

	var existing []string
	if err := db.Model(&catalogModel.DistrictModel{}).
		Pluck("district_external_id", &existing).Error; err != nil {
		log.Printf("❌ Gagal ambil district yang sudah ada: %v", err)
		return
	}
	existingMap := make(map[string]bool, len(existing))
	for _, id := range existing {
		existingMap[id] = true
	}

	var rows []catalogModel.DistrictModel
	for _, s := range seeds {
		if existingMap[s.ExternalID] {
			continue
		}
		tz := s.TimeZone
		if tz == "" {
			tz = "America/New_York"
		}
		rows = append(rows, catalogModel.DistrictModel{
			DistrictExternalID:   s.ExternalID,
			DistrictName:         s.Name,
			DistrictSecretPrefix: s.SecretPrefix,
			DistrictTimeZone:     tz,
		})
	}

	if len(rows) == 0 {
		log.Println("ℹ️ Semua district seed sudah ada, skip")
		return
	}
	if err := db.Create(&rows).Error; err != nil {
		log.Printf("❌ Gagal insert district seed: %v", err)
		return
	}
	log.Printf("✅ %d district berhasil di-seed", len(rows))
}

// SeedSchoolsFromJSON: insert school baru, di-link ke district via external_id.
// School baru otomatis requires_full_sync (default model).
func SeedSchoolsFromJSON(db *gorm.DB, filePath string) {
	log.Println("📥 Membaca file:", filePath)

	file, err := os.ReadFile(filePath)
	if err != nil {
		log.Printf("❌ Gagal membaca file JSON: %v", err)
		return
	}

	var seeds []SchoolSeed
	if err := json.Unmarshal(file, &seeds); err != nil {
		log.Printf("❌ Gagal decode JSON: %v", err)
		return
	}

	var existing []string
	if err := db.Model(&catalogModel.SchoolModel{}).
		Pluck("school_external_id", &existing).Error; err != nil {
		log.Printf("❌ Gagal ambil school yang sudah ada: %v", err)
		return
	}
	existingMap := make(map[string]bool, len(existing))
	for _, id := range existing {
		existingMap[id] = true
	}

	inserted := 0
	for _, s := range seeds {
		if existingMap[s.ExternalID] {
			continue
		}
		var district catalogModel.DistrictModel
		if err := db.Where("district_external_id = ?", s.DistrictExternalID).
			First(&district).Error; err != nil {
			log.Printf("❌ District %s untuk school %s tidak ditemukan, skip", s.DistrictExternalID, s.ExternalID)
			continue
		}
		row := catalogModel.SchoolModel{
			SchoolDistrictID:  district.DistrictID,
			SchoolExternalID:  s.ExternalID,
			SchoolName:        s.Name,
			SchoolDatabaseRef: s.DatabaseRef,
			SchoolIsActive:    true,
		}
		if err := db.Create(&row).Error; err != nil {
			log.Printf("❌ Gagal insert school %s: %v", s.ExternalID, err)
			continue
		}
		inserted++
	}
	log.Printf("✅ %d school berhasil di-seed", inserted)
}
