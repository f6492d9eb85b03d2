package controllers

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shopsterhq/shopster-backend/api/responses"
	"github.com/shopsterhq/shopster-backend/api/validators"
	"github.com/shopsterhq/shopster-backend/internal/identity"
	"github.com/shopsterhq/shopster-backend/pkg/logger"
)

type activateAccountRequest struct {
	Token    string `json:"token" validate:"required"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type accountResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// AccountActivate sets the password on a guest-provisioned account using the
// signed token from the activation email.
func AccountActivate(svc identity.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload activateAccountRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		user, err := svc.Activate(r.Context(), payload.Token, payload.Password)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, accountResponse{
			ID:        user.ID,
			Username:  user.Username,
			Email:     user.Email,
			FirstName: user.FirstName,
			LastName:  user.LastName,
			IsActive:  user.IsActive,
			CreatedAt: user.CreatedAt,
		})
	}
}
