package barcode

import (
	"context"
	"fmt"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupBarcodeTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())), &gorm.Config{})
	require.NoError(t, err)

	schema := `
CREATE TABLE IF NOT EXISTS barcode_counters (
  id TEXT PRIMARY KEY,
  unit_id TEXT NOT NULL,
  department_id TEXT NOT NULL,
  section_id TEXT,
  year INTEGER NOT NULL,
  last_seq INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(schema).Error)
	return db
}

func testScope() Scope {
	return Scope{
		UnitID:       uuid.New(),
		UnitCode:     "MFG01",
		DepartmentID: uuid.New(),
		Department:   "Quality Assurance",
		Year:         2026,
	}
}

func TestNextFormatsBarcode(t *testing.T) {
	db := setupBarcodeTestDB(t)
	seq := NewSequencer()

	scope := testScope()
	var barcode string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		barcode, err = seq.Next(context.Background(), tx, scope)
		return err
	})
	require.NoError(t, err)
	// Name segments are cleaned and capped at ten characters.
	assert.Equal(t, "MFG01/QualityAss/2026/00001", barcode)
}

func TestNextIncludesSectionSegment(t *testing.T) {
	db := setupBarcodeTestDB(t)
	seq := NewSequencer()

	scope := testScope()
	sectionID := uuid.New()
	scope.SectionID = &sectionID
	scope.Section = "In-Process"

	var barcode string
	err := db.Transaction(func(tx *gorm.DB) error {
		var err error
		barcode, err = seq.Next(context.Background(), tx, scope)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "MFG01/QualityAss/InProcess/2026/00001", barcode)
}

// Sequencing runs in back-to-back transactions here because sqlite ignores
// FOR UPDATE and allows only one writer; the lock discipline that serializes
// concurrent allocations is only observable against Postgres.
func TestNextSequencesGaplesslyPerScope(t *testing.T) {
	db := setupBarcodeTestDB(t)
	seq := NewSequencer()

	scope := testScope()
	var got []string
	for i := 0; i < 3; i++ {
		err := db.Transaction(func(tx *gorm.DB) error {
			barcode, err := seq.Next(context.Background(), tx, scope)
			got = append(got, barcode)
			return err
		})
		require.NoError(t, err)
	}
	want := []string{
		"MFG01/QualityAss/2026/00001",
		"MFG01/QualityAss/2026/00002",
		"MFG01/QualityAss/2026/00003",
	}
	assert.Equal(t, want, got)

	// A different year restarts its own sequence.
	other := scope
	other.Year = 2027
	err := db.Transaction(func(tx *gorm.DB) error {
		barcode, err := seq.Next(context.Background(), tx, other)
		assert.Equal(t, "MFG01/QualityAss/2027/00001", barcode)
		return err
	})
	require.NoError(t, err)
}

func TestNextRollsBackWithTransaction(t *testing.T) {
	db := setupBarcodeTestDB(t)
	seq := NewSequencer()

	scope := testScope()
	err := db.Transaction(func(tx *gorm.DB) error {
		if _, err := seq.Next(context.Background(), tx, scope); err != nil {
			return err
		}
		return fmt.Errorf("crate creation failed")
	})
	require.Error(t, err)

	// The aborted sequence number is reissued, not skipped.
	err = db.Transaction(func(tx *gorm.DB) error {
		barcode, err := seq.Next(context.Background(), tx, scope)
		assert.Equal(t, "MFG01/QualityAss/2026/00001", barcode)
		return err
	})
	require.NoError(t, err)
}

func TestCleanNameTruncatesByRunes(t *testing.T) {
	// The é starts at byte ten, so a byte-indexed cut would split it and
	// leave an invalid UTF-8 segment in the barcode.
	got := cleanName("Barcelonaéste")
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Barcelonaé", got)

	assert.Equal(t, "MFG01", cleanName("MFG 01"))
}

func TestNextValidatesScope(t *testing.T) {
	db := setupBarcodeTestDB(t)
	seq := NewSequencer()

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := seq.Next(context.Background(), tx, Scope{UnitCode: "MFG01"})
		return err
	})
	require.Error(t, err)

	_, err = seq.Next(context.Background(), nil, testScope())
	require.Error(t, err)
}
