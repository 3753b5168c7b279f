// Package barcode issues crate barcodes of the form
// unit_code/DeptName[/SectionName]/year/NNNNN. Sequences are per
// (unit, department, section, year) and must be gapless under concurrency,
// so the counter row is locked for the duration of the caller's transaction.
package barcode

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"gorm.io/gorm"

	pkgdb "github.com/vaultarc/archive-backend/pkg/db"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
)

const maxNameLen = 10

// Scope identifies one barcode sequence.
type Scope struct {
	UnitID       uuid.UUID
	UnitCode     string
	DepartmentID uuid.UUID
	Department   string
	SectionID    *uuid.UUID
	Section      string
	Year         int
}

// Sequencer allocates barcodes inside a caller-owned transaction.
type Sequencer interface {
	Next(ctx context.Context, tx *gorm.DB, scope Scope) (string, error)
}

type sequencer struct{}

// NewSequencer builds the barcode sequencer.
func NewSequencer() Sequencer {
	return sequencer{}
}

// cleanName strips spaces, hyphens, and anything else that would break the
// slash-delimited format, then truncates to the segment limit.
func cleanName(name string) string {
	var b strings.Builder
	count := 0
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		// Truncate by runes so a multi-byte name cannot end mid-character.
		if count == maxNameLen {
			break
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// Next increments the scoped counter and renders the barcode. The counter row
// is taken FOR UPDATE so two concurrent crate creations in the same scope
// serialize instead of reusing a sequence number.
func (sequencer) Next(ctx context.Context, tx *gorm.DB, scope Scope) (string, error) {
	if tx == nil {
		return "", pkgerrors.New(pkgerrors.CodeInternal, "barcode allocation requires a transaction")
	}
	if scope.UnitID == uuid.Nil || scope.DepartmentID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "barcode scope requires unit and department")
	}
	if scope.Year <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "barcode scope requires a year")
	}
	unitCode := cleanName(scope.UnitCode)
	department := cleanName(scope.Department)
	if unitCode == "" || department == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "barcode scope requires unit and department names")
	}

	query := pkgdb.LockForUpdate(tx.WithContext(ctx)).
		Where("unit_id = ? AND department_id = ? AND year = ?", scope.UnitID, scope.DepartmentID, scope.Year)
	if scope.SectionID != nil {
		query = query.Where("section_id = ?", *scope.SectionID)
	} else {
		query = query.Where("section_id IS NULL")
	}

	var counter models.BarcodeCounter
	err := query.First(&counter).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		counter = models.BarcodeCounter{
			ID:           uuid.New(),
			UnitID:       scope.UnitID,
			DepartmentID: scope.DepartmentID,
			SectionID:    scope.SectionID,
			Year:         scope.Year,
			LastSeq:      0,
		}
		if err := tx.WithContext(ctx).Create(&counter).Error; err != nil {
			// Another transaction created the row first; retry the locked read.
			if lockErr := query.First(&counter).Error; lockErr != nil {
				return "", pkgerrors.Wrap(pkgerrors.CodeConflict, err, "allocate barcode counter")
			}
		}
	case err != nil:
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock barcode counter")
	}

	counter.LastSeq++
	if err := tx.WithContext(ctx).
		Model(&models.BarcodeCounter{}).
		Where("id = ?", counter.ID).
		Update("last_seq", counter.LastSeq).Error; err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance barcode counter")
	}

	segments := []string{unitCode, department}
	if section := cleanName(scope.Section); scope.SectionID != nil && section != "" {
		segments = append(segments, section)
	}
	segments = append(segments, fmt.Sprintf("%d", scope.Year), fmt.Sprintf("%05d", counter.LastSeq))
	return strings.Join(segments, "/"), nil
}
