package controllers

import (
	"net/http"

	"github.com/cashdash/cashdash-backend/api/responses"
	"github.com/cashdash/cashdash-backend/api/validators"
	"github.com/cashdash/cashdash-backend/internal/banks"
	pkgerrors "github.com/cashdash/cashdash-backend/pkg/errors"
	"github.com/cashdash/cashdash-backend/pkg/logger"
)

type createBankRequest struct {
	Nickname          string `json:"nickname" validate:"required,min=1,max=64"`
	SourceID          string `json:"source_id" validate:"required"`
	VerificationToken string `json:"verification_token,omitempty"`
	MakePrimary       bool   `json:"make_primary"`
}

// ListBanks returns the caller's refund destinations.
func ListBanks(svc banks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "banks service unavailable"))
			return
		}

		actorID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		accounts, err := svc.List(r.Context(), actorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, accounts)
	}
}

// CreateBank vaults a card with the payout provider and stores the account.
func CreateBank(svc banks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "banks service unavailable"))
			return
		}

		actorID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body createBankRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		account, err := svc.Create(r.Context(), banks.CreateInput{
			UserID:            actorID,
			Nickname:          body.Nickname,
			SourceID:          body.SourceID,
			VerificationToken: body.VerificationToken,
			MakePrimary:       body.MakePrimary,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, account)
	}
}

// SetPrimaryBank promotes one account to the default refund destination.
func SetPrimaryBank(svc banks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "banks service unavailable"))
			return
		}

		actorID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bankID, err := pathUUID(r, "bankID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetPrimary(r.Context(), actorID, bankID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "primary_set"})
	}
}

// DeactivateBank retires a refund destination.
func DeactivateBank(svc banks.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "banks service unavailable"))
			return
		}

		actorID, _, err := actorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bankID, err := pathUUID(r, "bankID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Deactivate(r.Context(), actorID, bankID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deactivated"})
	}
}
