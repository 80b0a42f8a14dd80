package banks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sq "github.com/square/square-go-sdk"
	"gorm.io/gorm"

	"github.com/cashdash/cashdash-backend/internal/squarecustomers"
	"github.com/cashdash/cashdash-backend/pkg/db/models"
	pkgerrors "github.com/cashdash/cashdash-backend/pkg/errors"
	"github.com/cashdash/cashdash-backend/pkg/square"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cardCreator interface {
	CreateCard(ctx context.Context, params square.CardCreateParams) (*sq.Card, error)
}

type userLoader interface {
	FindByID(ctx context.Context, userID uuid.UUID) (*models.User, error)
}

// Service manages refund destination bank accounts.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.BankAccount, error)
	List(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error)
	SetPrimary(ctx context.Context, userID, bankID uuid.UUID) error
	Deactivate(ctx context.Context, userID, bankID uuid.UUID) error
}

// CreateInput carries everything needed to vault and persist a destination.
type CreateInput struct {
	UserID            uuid.UUID
	Nickname          string
	SourceID          string
	VerificationToken string
	MakePrimary       bool
}

type service struct {
	repo      Repository
	tx        txRunner
	users     userLoader
	customers squarecustomers.Service
	cards     cardCreator
}

// NewService wires the bank account service.
func NewService(repo Repository, tx txRunner, users userLoader, customers squarecustomers.Service, cards cardCreator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("banks repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if users == nil {
		return nil, fmt.Errorf("user loader required")
	}
	if customers == nil {
		return nil, fmt.Errorf("square customers service required")
	}
	if cards == nil {
		return nil, fmt.Errorf("card creator required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		users:     users,
		customers: customers,
		cards:     cards,
	}, nil
}

// Create vaults the destination with the payout provider and persists the
// linked account. The first account a user adds becomes their primary.
func (s *service) Create(ctx context.Context, input CreateInput) (*models.BankAccount, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	sourceID := strings.TrimSpace(input.SourceID)
	if sourceID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source_id is required")
	}
	nickname := strings.TrimSpace(input.Nickname)
	if nickname == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nickname is required")
	}

	user, err := s.users.FindByID(ctx, input.UserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	customerID, err := s.customers.EnsureCustomer(ctx, squarecustomers.Input{
		UserID:    user.ID.String(),
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Phone:     user.Phone,
	})
	if err != nil {
		return nil, err
	}

	card, err := s.cards.CreateCard(ctx, square.CardCreateParams{
		CustomerID:        customerID,
		SourceID:          sourceID,
		VerificationToken: strings.TrimSpace(input.VerificationToken),
		ReferenceID:       squarecustomers.ReferenceID(user.ID.String()),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "vault refund destination")
	}
	if card == nil || card.GetID() == nil || strings.TrimSpace(*card.GetID()) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "provider card missing id")
	}

	cardID := strings.TrimSpace(*card.GetID())
	account := &models.BankAccount{
		UserID:         user.ID,
		Nickname:       nickname,
		Last4:          last4(card),
		ProviderCardID: &cardID,
		IsActive:       true,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		existing, err := repo.CountByUser(ctx, user.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count bank accounts")
		}
		account.IsPrimary = input.MakePrimary || existing == 0
		if account.IsPrimary {
			if err := repo.ClearPrimary(ctx, user.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear primary flag")
			}
		}
		if err := repo.Create(ctx, account); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bank account")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return account, nil
}

func (s *service) List(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	accounts, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bank accounts")
	}
	return accounts, nil
}

// SetPrimary flips the primary flag, clearing the previous holder in the
// same transaction so at most one primary survives.
func (s *service) SetPrimary(ctx context.Context, userID, bankID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if bankID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "bank account id required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := repo.ClearPrimary(ctx, userID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear primary flag")
		}
		updated, err := repo.SetPrimary(ctx, userID, bankID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "set primary flag")
		}
		if !updated {
			return pkgerrors.New(pkgerrors.CodeNotFound, "bank account not found")
		}
		return nil
	})
}

func (s *service) Deactivate(ctx context.Context, userID, bankID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if bankID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "bank account id required")
	}

	updated, err := s.repo.Deactivate(ctx, userID, bankID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "deactivate bank account")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "bank account not found")
	}
	return nil
}

func last4(card *sq.Card) string {
	if value := card.GetLast4(); value != nil {
		return *value
	}
	return ""
}
