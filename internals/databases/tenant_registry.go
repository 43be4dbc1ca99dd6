// file: internals/databases/tenant_registry.go
package database

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"sekolahsync_backend/internals/configs"
)

/* =========================================================
   TENANT REGISTRY
   Satu database per sekolah. Handle di-cache per databaseRef
   supaya pool koneksi tidak dibuat ulang tiap sync run.
========================================================= */

type TenantRegistry struct {
	mu      sync.Mutex
	handles map[string]*gorm.DB
	secrets configs.SecretStore
	opener  func(dsn string) (*gorm.DB, error)
}

func NewTenantRegistry(secrets configs.SecretStore) *TenantRegistry {
	return &TenantRegistry{
		handles: make(map[string]*gorm.DB),
		secrets: secrets,
		opener:  openTenantDB,
	}
}

// NewTenantRegistryWithOpener dipakai test untuk inject sqlite/in-memory handle.
func NewTenantRegistryWithOpener(secrets configs.SecretStore, opener func(dsn string) (*gorm.DB, error)) *TenantRegistry {
	r := NewTenantRegistry(secrets)
	r.opener = opener
	return r
}

// Get mengembalikan handle DB tenant untuk databaseRef tertentu.
// DSN diambil dari secret store dengan prefix districtSecretPrefix.
func (r *TenantRegistry) Get(districtSecretPrefix, databaseRef string) (*gorm.DB, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if db, ok := r.handles[databaseRef]; ok {
		return db, nil
	}

	dsn, err := r.secrets.GetTenantSecret(districtSecretPrefix, databaseRef+"_DSN")
	if err != nil {
		return nil, fmt.Errorf("resolve DSN tenant %s: %w", databaseRef, err)
	}

	db, err := r.opener(dsn)
	if err != nil {
		return nil, fmt.Errorf("open tenant DB %s: %w", databaseRef, err)
	}
	r.handles[databaseRef] = db
	return db, nil
}

// Put meng-cache handle yang sudah ada (dipakai test & warm-up).
func (r *TenantRegistry) Put(databaseRef string, db *gorm.DB) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handles[databaseRef] = db
}

func openTenantDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		Logger: configs.NewGormLogger(),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err == nil {
		// pool kecil: banyak tenant, satu API key bersama
		sqlDB.SetMaxOpenConns(5)
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetConnMaxIdleTime(60 * time.Second)
	}
	return db, nil
}
