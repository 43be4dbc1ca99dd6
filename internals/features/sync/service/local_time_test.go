// file: internals/features/sync/service/local_time_test.go
package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalTimeConversion(t *testing.T) {
	lt := NewLocalTime("Asia/Jakarta")
	require.Equal(t, "Asia/Jakarta", lt.Location().String())

	// UTC+7, tanpa DST
	utc := time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)
	local := lt.ToLocal(utc)
	assert.Equal(t, 8, local.Hour())
	assert.Equal(t, 30, local.Minute())
	assert.True(t, local.Equal(utc), "konversi tidak menggeser instant")
}

func TestLocalTimeInvalidZoneFallsBackToUTC(t *testing.T) {
	lt := NewLocalTime("Mars/Olympus")
	assert.Equal(t, time.UTC, lt.Location())

	utc := time.Date(2026, 3, 10, 1, 30, 0, 0, time.UTC)
	assert.Equal(t, 1, lt.ToLocal(utc).Hour())
}

func TestLocalTimeHandlesDST(t *testing.T) {
	lt := NewLocalTime("America/New_York")

	winter := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	summer := time.Date(2026, 7, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 7, lt.ToLocal(winter).Hour())  // EST, UTC-5
	assert.Equal(t, 8, lt.ToLocal(summer).Hour())  // EDT, UTC-4
}
