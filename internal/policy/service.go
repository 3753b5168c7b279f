// Package policy resolves the compliance settings that shape workflow and
// session behavior. Settings live in the single system_policies row; the
// unique constraint on that table is what enforces "exactly one policy",
// not an application-level existence check. Nothing here caches: callers
// resolve the policy when they need it so an update takes effect on the
// next transition.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/vaultarc/archive-backend/internal/audit"
	"github.com/vaultarc/archive-backend/internal/privilege"
	"github.com/vaultarc/archive-backend/pkg/config"
	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
)

// Effective is the policy a caller should act on right now. Session timeout
// is capped by the configured ceiling; the row can only shorten it.
type Effective struct {
	SessionTimeout            time.Duration
	PasswordExpiryDays        int
	WithdrawalMaxDays         int
	EnforceSeparationOfDuties bool
}

// UpdateInput carries the fields an administrator may change. Nil fields are
// left untouched.
type UpdateInput struct {
	SessionTimeoutMinutes     *int
	PasswordExpiryDays        *int
	WithdrawalMaxDays         *int
	EnforceSeparationOfDuties *bool
	IPAddress                 string
	UserAgent                 string
}

// Service exposes the compliance policy singleton.
type Service interface {
	Resolve(ctx context.Context) (Effective, error)
	Get(ctx context.Context) (*models.SystemPolicy, error)
	Update(ctx context.Context, actor *models.User, input UpdateInput) (*models.SystemPolicy, error)
}

type service struct {
	repo       Repository
	audits     audit.Service
	privileges privilege.Service
	session    config.SessionConfig
	compliance config.ComplianceConfig
}

// NewService builds the policy service. The session and compliance configs
// act as defaults when the policy row is absent, which only happens before
// the seed migration has run.
func NewService(repo Repository, audits audit.Service, privileges privilege.Service, session config.SessionConfig, compliance config.ComplianceConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("policy repository required")
	}
	if audits == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if privileges == nil {
		return nil, fmt.Errorf("privilege service required")
	}
	return &service{
		repo:       repo,
		audits:     audits,
		privileges: privileges,
		session:    session,
		compliance: compliance,
	}, nil
}

func (s *service) Resolve(ctx context.Context) (Effective, error) {
	row, err := s.repo.Find(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Effective{
				SessionTimeout:            s.session.InactivityTimeout,
				EnforceSeparationOfDuties: s.compliance.EnforceSeparationOfDuties,
			}, nil
		}
		return Effective{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve system policy")
	}

	timeout := time.Duration(row.SessionTimeoutMinutes) * time.Minute
	if timeout <= 0 || timeout > s.session.InactivityTimeout {
		timeout = s.session.InactivityTimeout
	}

	return Effective{
		SessionTimeout:            timeout,
		PasswordExpiryDays:        row.PasswordExpiryDays,
		WithdrawalMaxDays:         row.WithdrawalMaxDays,
		EnforceSeparationOfDuties: row.EnforceSeparationOfDuties,
	}, nil
}

func (s *service) Get(ctx context.Context) (*models.SystemPolicy, error) {
	row, err := s.repo.Find(ctx)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "system policy not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load system policy")
	}
	return row, nil
}

func (s *service) Update(ctx context.Context, actor *models.User, input UpdateInput) (*models.SystemPolicy, error) {
	if err := s.privileges.Require(ctx, actor, enums.PrivilegeManageUsers); err != nil {
		return nil, err
	}

	if input.SessionTimeoutMinutes != nil && *input.SessionTimeoutMinutes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session timeout must be positive")
	}
	if input.PasswordExpiryDays != nil && *input.PasswordExpiryDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password expiry must be positive")
	}
	if input.WithdrawalMaxDays != nil && *input.WithdrawalMaxDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal window must be positive")
	}

	row, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}

	if input.SessionTimeoutMinutes != nil {
		row.SessionTimeoutMinutes = *input.SessionTimeoutMinutes
	}
	if input.PasswordExpiryDays != nil {
		row.PasswordExpiryDays = *input.PasswordExpiryDays
	}
	if input.WithdrawalMaxDays != nil {
		row.WithdrawalMaxDays = *input.WithdrawalMaxDays
	}
	if input.EnforceSeparationOfDuties != nil {
		row.EnforceSeparationOfDuties = *input.EnforceSeparationOfDuties
	}

	if err := s.repo.Save(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save system policy")
	}

	if _, err := s.audits.Append(ctx, nil, audit.AppendInput{
		Action:    enums.AuditActionUpdated,
		ActorID:   &actor.ID,
		Message:   "compliance policy updated",
		IPAddress: input.IPAddress,
		UserAgent: input.UserAgent,
	}); err != nil {
		return nil, err
	}

	return row, nil
}
