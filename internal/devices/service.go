package devices

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/cashdash/cashdash-backend/pkg/enums"
	pkgerrors "github.com/cashdash/cashdash-backend/pkg/errors"
	"github.com/cashdash/cashdash-backend/pkg/logger"
)

const tokenMaxLen = 4096

// RegisterInput carries a push token registration from a client app.
type RegisterInput struct {
	UserID   uuid.UUID
	Token    string
	Platform string
	AppRole  string
}

// Service manages push device registrations.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.Device, error)
	Unregister(ctx context.Context, userID uuid.UUID, token string) error
	UnregisterByID(ctx context.Context, userID, deviceID uuid.UUID) error
	ActiveDevices(ctx context.Context, userID uuid.UUID) ([]models.Device, error)
	ActiveDevicesForRole(ctx context.Context, userID uuid.UUID, appRole enums.DeviceAppRole) ([]models.Device, error)
	RetireToken(ctx context.Context, token string) error
}

type service struct {
	repo Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires the device registration service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("devices repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo: repo,
		logg: logg,
		now:  time.Now,
	}, nil
}

// Register upserts the (user, token) pair. Re-registering an existing token
// revives it and refreshes platform, app role, and last seen time.
func (s *service) Register(ctx context.Context, input RegisterInput) (*models.Device, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	if len(token) > tokenMaxLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token too long")
	}
	platform, err := enums.ParseDevicePlatform(strings.TrimSpace(input.Platform))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}
	appRole, err := enums.ParseDeviceAppRole(strings.TrimSpace(input.AppRole))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	seenAt := s.now().UTC()
	device := &models.Device{
		UserID:     input.UserID,
		Token:      token,
		Platform:   platform,
		AppRole:    appRole,
		IsActive:   true,
		LastSeenAt: &seenAt,
	}
	if err := s.repo.Upsert(ctx, device); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register device")
	}
	return device, nil
}

func (s *service) Unregister(ctx context.Context, userID uuid.UUID, token string) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}

	updated, err := s.repo.Deactivate(ctx, userID, token)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unregister device")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
	}
	return nil
}

func (s *service) UnregisterByID(ctx context.Context, userID, deviceID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if deviceID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "device id is required")
	}

	updated, err := s.repo.DeactivateByID(ctx, userID, deviceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "unregister device")
	}
	if !updated {
		return pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
	}
	return nil
}

func (s *service) ActiveDevices(ctx context.Context, userID uuid.UUID) ([]models.Device, error) {
	devices, err := s.repo.ListActiveByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list devices")
	}
	return devices, nil
}

func (s *service) ActiveDevicesForRole(ctx context.Context, userID uuid.UUID, appRole enums.DeviceAppRole) ([]models.Device, error) {
	devices, err := s.repo.ListActiveByUserAndRole(ctx, userID, appRole)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list devices")
	}
	return devices, nil
}

// RetireToken deactivates a token the push gateway reported as dead.
func (s *service) RetireToken(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	retired, err := s.repo.DeactivateByToken(ctx, token)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retire device token")
	}
	if retired > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{"retired": retired}), "retired dead push token")
	}
	return nil
}
