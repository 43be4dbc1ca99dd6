package seeds

import (
	catalog "sekolahsync_backend/internals/seeds/catalog"

	"gorm.io/gorm"
)

func RunAllSeeds(db *gorm.DB) {
	catalog.SeedDistrictsFromJSON(db, "internals/seeds/catalog/data_districts.json")
	catalog.SeedSchoolsFromJSON(db, "internals/seeds/catalog/data_schools.json")
}
