package privilege

import (
	"context"
	"fmt"

	"github.com/vaultarc/archive-backend/pkg/db/models"
	"github.com/vaultarc/archive-backend/pkg/enums"
	pkgerrors "github.com/vaultarc/archive-backend/pkg/errors"
)

// Service answers one question: may this user perform this action right now.
// Answers come from the user's live role, never from anything cached in a
// token, so revoking a privilege takes effect on the next call.
type Service interface {
	Has(ctx context.Context, user *models.User, privilege enums.Privilege) (bool, error)
	Require(ctx context.Context, user *models.User, privilege enums.Privilege) error
	ListForUser(ctx context.Context, user *models.User) ([]enums.Privilege, error)
}

type service struct {
	repo Repository
}

// NewService builds the privilege resolver.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("privilege repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) Has(ctx context.Context, user *models.User, privilege enums.Privilege) (bool, error) {
	if user == nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if !privilege.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "unknown privilege")
	}
	if !user.IsActive {
		return false, nil
	}
	if user.IsSuperuser {
		return true, nil
	}
	if user.RoleID == nil {
		return false, nil
	}
	has, err := s.repo.RoleHasPrivilege(ctx, *user.RoleID, privilege)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve privilege")
	}
	return has, nil
}

// Require is Has that fails closed: any resolution error or missing grant
// denies the action.
func (s *service) Require(ctx context.Context, user *models.User, privilege enums.Privilege) error {
	has, err := s.Has(ctx, user, privilege)
	if err != nil {
		return err
	}
	if !has {
		return pkgerrors.New(pkgerrors.CodeForbidden, fmt.Sprintf("missing privilege %s", privilege))
	}
	return nil
}

func (s *service) ListForUser(ctx context.Context, user *models.User) ([]enums.Privilege, error) {
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if !user.IsActive {
		return []enums.Privilege{}, nil
	}
	if user.IsSuperuser {
		out := make([]enums.Privilege, len(enums.AllPrivileges()))
		copy(out, enums.AllPrivileges())
		return out, nil
	}
	if user.RoleID == nil {
		return []enums.Privilege{}, nil
	}
	privileges, err := s.repo.FindPrivilegesByRole(ctx, *user.RoleID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list privileges")
	}
	return privileges, nil
}
