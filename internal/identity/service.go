package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/shopsterhq/shopster-backend/pkg/auth"
	"github.com/shopsterhq/shopster-backend/pkg/config"
	"github.com/shopsterhq/shopster-backend/pkg/db"
	"github.com/shopsterhq/shopster-backend/pkg/db/models"
	pkgerrors "github.com/shopsterhq/shopster-backend/pkg/errors"
	"github.com/shopsterhq/shopster-backend/pkg/security"
	"github.com/shopsterhq/shopster-backend/pkg/slug"
)

const fallbackUsername = "customer"

// Resolution is the outcome of resolving checkout input to an account.
type Resolution struct {
	User *models.User
	// Created is true when a fresh account was provisioned for a guest.
	// Such accounts have no password and trigger an activation email after
	// the order commits.
	Created bool
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service resolves checkout identities and activates provisioned accounts.
type Service interface {
	// Resolve maps checkout input to a user account inside the caller's
	// transaction. Authenticated callers get their own account back;
	// guests are matched to an existing account by email or get a new one.
	Resolve(ctx context.Context, tx *gorm.DB, authenticatedID *uuid.UUID, email, fullName string) (*Resolution, error)
	// Activate sets the password on a guest-provisioned account using the
	// signed token from the activation email.
	Activate(ctx context.Context, token, password string) (*models.User, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	jwtCfg config.JWTConfig
	pwCfg  config.PasswordConfig
}

// NewService builds the identity service with its required dependencies.
func NewService(repo Repository, tx txRunner, jwtCfg config.JWTConfig, pwCfg config.PasswordConfig) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("identity repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, jwtCfg: jwtCfg, pwCfg: pwCfg}, nil
}

func (s *service) Resolve(ctx context.Context, tx *gorm.DB, authenticatedID *uuid.UUID, email, fullName string) (*Resolution, error) {
	repo := s.repo.WithTx(tx)

	if authenticatedID != nil && *authenticatedID != uuid.Nil {
		user, err := repo.FindByID(ctx, *authenticatedID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "account no longer exists")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
		}
		return &Resolution{User: user}, nil
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required for guest checkout")
	}

	user, err := repo.FindByEmail(ctx, email)
	switch {
	case err == nil:
		return &Resolution{User: user}, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		// fall through to provisioning
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "look up account by email")
	}

	username, err := s.generateUsername(ctx, repo, email)
	if err != nil {
		return nil, err
	}

	first, last := SplitFullName(fullName)
	created, err := repo.Create(ctx, &models.User{
		Username:  username,
		Email:     email,
		FirstName: first,
		LastName:  last,
		IsActive:  true,
	})
	if err != nil {
		// A concurrent checkout for the same email may have won the insert.
		if db.IsUniqueViolation(err, "uniq_users_email") {
			existing, findErr := repo.FindByEmail(ctx, email)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "re-fetch account after conflict")
			}
			return &Resolution{User: existing}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "provision guest account")
	}

	return &Resolution{User: created, Created: true}, nil
}

// generateUsername derives a username from the email local part and resolves
// collisions with a numeric suffix.
func (s *service) generateUsername(ctx context.Context, repo Repository, email string) (string, error) {
	local := email
	if at := strings.Index(email, "@"); at >= 0 {
		local = email[:at]
	}
	base := slug.Make(local)
	if base == "" {
		base = fallbackUsername
	}

	for n := 1; ; n++ {
		candidate := slug.WithSuffix(base, n)
		taken, err := repo.UsernameExists(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check username availability")
		}
		if !taken {
			return candidate, nil
		}
	}
}

func (s *service) Activate(ctx context.Context, token, password string) (*models.User, error) {
	if strings.TrimSpace(password) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "password is required")
	}

	claims, err := auth.ParseActivationToken(s.jwtCfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid activation token")
	}

	var user *models.User
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		found, err := repo.FindByID(ctx, claims.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
		}
		if found.HasUsableCredential() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "account already activated")
		}

		hash, err := security.HashPassword(password, s.pwCfg)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
		}
		if err := repo.SetPassword(ctx, found.ID, hash); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store password")
		}
		found.PasswordHash = hash
		user = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// SplitFullName splits a free-form name into first and last components: the
// first whitespace-separated token becomes the first name, the remainder the
// last name.
func SplitFullName(fullName string) (string, string) {
	fields := strings.Fields(fullName)
	switch len(fields) {
	case 0:
		return "", ""
	case 1:
		return fields[0], ""
	default:
		return fields[0], strings.Join(fields[1:], " ")
	}
}
