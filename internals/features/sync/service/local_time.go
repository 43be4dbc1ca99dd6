// file: internals/features/sync/service/local_time.go
package service

import (
	"log"
	"time"
)

/* =========================================================
   LOCAL TIME CONTEXT
   Timezone district di-resolve sekali per sync run, bukan
   per record. Penyimpanan selalu UTC; konversi lokal hanya
   di boundary presentasi/penjadwalan.
========================================================= */

type LocalTime struct {
	tz  string
	loc *time.Location
}

func NewLocalTime(tz string) *LocalTime {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("[WARN] timezone %q tidak dikenal, fallback UTC", tz)
		loc = time.UTC
	}
	return &LocalTime{tz: tz, loc: loc}
}

func (lt *LocalTime) Location() *time.Location { return lt.loc }

// Now: waktu sekarang dalam timezone tenant.
func (lt *LocalTime) Now() time.Time {
	return time.Now().In(lt.loc)
}

// ToLocal konversi timestamp UTC ke waktu tenant.
func (lt *LocalTime) ToLocal(t time.Time) time.Time {
	return t.In(lt.loc)
}
