package squarecustomers

import (
	"context"
	"fmt"
	"strings"

	"github.com/cashdash/cashdash-backend/pkg/errors"
	"github.com/cashdash/cashdash-backend/pkg/square"
	sq "github.com/square/square-go-sdk"
)

// Service ensures Square customer records exist for cashdash users and
// exposes the customer identifier used to vault refund destinations.
type Service interface {
	EnsureCustomer(ctx context.Context, input Input) (string, error)
}

// Input contains the fields required to create or locate a Square customer.
type Input struct {
	UserID    string
	FirstName string
	LastName  string
	Email     string
	Phone     *string
}

type service struct {
	client *square.Client
}

// NewService builds a service that uses the shared Square client.
func NewService(client *square.Client) Service {
	return &service{client: client}
}

func (s *service) EnsureCustomer(ctx context.Context, input Input) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New(errors.CodeInternal, "square client required")
	}

	params := square.CustomerCreateParams{
		Email:       strings.TrimSpace(input.Email),
		PhoneNumber: strings.TrimSpace(safeString(input.Phone)),
		GivenName:   strings.TrimSpace(input.FirstName),
		FamilyName:  strings.TrimSpace(input.LastName),
		ReferenceID: ReferenceID(input.UserID),
	}

	customer, err := s.client.EnsureCustomer(ctx, params)
	if err != nil {
		return "", errors.Wrap(errors.CodeDependency, err, "ensure square customer")
	}
	if customer == nil {
		return "", errors.New(errors.CodeDependency, "square customer missing")
	}
	return customerID(customer)
}

// ReferenceID is the deterministic Square reference for a cashdash user, so
// repeated linking calls resolve the same provider customer.
func ReferenceID(userID string) string {
	return fmt.Sprintf("cd:user:%s", strings.TrimSpace(userID))
}

func customerID(customer *sq.Customer) (string, error) {
	if id := customer.GetID(); id != nil && strings.TrimSpace(*id) != "" {
		return *id, nil
	}
	return "", errors.New(errors.CodeDependency, "square customer id missing")
}

func safeString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
