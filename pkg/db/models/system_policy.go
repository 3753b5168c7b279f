package models

import (
	"time"

	"github.com/google/uuid"
)

// SystemPolicy is the single compliance policy row. The singleton column has
// a unique constraint and a CHECK pinning it to true, so a second row cannot
// exist; callers resolve the policy once per request instead of caching a
// process-wide global.
type SystemPolicy struct {
	ID                        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Singleton                 bool      `gorm:"column:singleton;not null;default:true;uniqueIndex"`
	SessionTimeoutMinutes     int       `gorm:"column:session_timeout_minutes;not null;default:30"`
	PasswordExpiryDays        int       `gorm:"column:password_expiry_days;not null;default:90"`
	WithdrawalMaxDays         int       `gorm:"column:withdrawal_max_days;not null;default:30"`
	EnforceSeparationOfDuties bool      `gorm:"column:enforce_separation_of_duties;not null;default:true"`
	UpdatedAt                 time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
