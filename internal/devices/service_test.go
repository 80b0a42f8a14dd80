package devices

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/cashdash/cashdash-backend/pkg/enums"
	pkgerrors "github.com/cashdash/cashdash-backend/pkg/errors"
	"github.com/cashdash/cashdash-backend/pkg/logger"
)

type stubDevicesRepo struct {
	upserted     []*models.Device
	deactivated  bool
	tokenRetired int64
	lastToken    string
	lastDeviceID uuid.UUID
}

func (s *stubDevicesRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubDevicesRepo) Upsert(ctx context.Context, device *models.Device) error {
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	s.upserted = append(s.upserted, device)
	return nil
}

func (s *stubDevicesRepo) FindByUserAndToken(ctx context.Context, userID uuid.UUID, token string) (*models.Device, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *stubDevicesRepo) ListActiveByUser(ctx context.Context, userID uuid.UUID) ([]models.Device, error) {
	return nil, nil
}

func (s *stubDevicesRepo) ListActiveByUserAndRole(ctx context.Context, userID uuid.UUID, appRole enums.DeviceAppRole) ([]models.Device, error) {
	return nil, nil
}

func (s *stubDevicesRepo) Deactivate(ctx context.Context, userID uuid.UUID, token string) (bool, error) {
	s.lastToken = token
	return s.deactivated, nil
}

func (s *stubDevicesRepo) DeactivateByID(ctx context.Context, userID, deviceID uuid.UUID) (bool, error) {
	s.lastDeviceID = deviceID
	return s.deactivated, nil
}

func (s *stubDevicesRepo) DeactivateByToken(ctx context.Context, token string) (int64, error) {
	s.lastToken = token
	return s.tokenRetired, nil
}

func newDevicesService(t *testing.T, repo Repository) Service {
	t.Helper()

	svc, err := NewService(repo, logger.New(logger.Options{ServiceName: "devices-test"}))
	require.NoError(t, err)
	return svc
}

func TestRegisterValidatesAndUpserts(t *testing.T) {
	repo := &stubDevicesRepo{}
	svc := newDevicesService(t, repo)
	userID := uuid.New()

	device, err := svc.Register(context.Background(), RegisterInput{
		UserID:   userID,
		Token:    "  tok-abc  ",
		Platform: "ios",
		AppRole:  "runner_app",
	})
	require.NoError(t, err)

	assert.Equal(t, "tok-abc", device.Token)
	assert.Equal(t, enums.DevicePlatformIOS, device.Platform)
	assert.Equal(t, enums.DeviceAppRoleRunner, device.AppRole)
	assert.True(t, device.IsActive)
	require.NotNil(t, device.LastSeenAt)
	require.Len(t, repo.upserted, 1)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	svc := newDevicesService(t, &stubDevicesRepo{})
	ctx := context.Background()
	userID := uuid.New()

	cases := []struct {
		name  string
		input RegisterInput
	}{
		{"missing token", RegisterInput{UserID: userID, Platform: "ios", AppRole: "customer_app"}},
		{"bad platform", RegisterInput{UserID: userID, Token: "tok", Platform: "blackberry", AppRole: "customer_app"}},
		{"bad app role", RegisterInput{UserID: userID, Token: "tok", Platform: "ios", AppRole: "admin_app"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tc.input)
			require.Error(t, err)
			assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
		})
	}

	_, err := svc.Register(ctx, RegisterInput{Token: "tok", Platform: "ios", AppRole: "customer_app"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeUnauthorized, pkgerrors.As(err).Code())
}

func TestUnregisterNotFound(t *testing.T) {
	repo := &stubDevicesRepo{deactivated: false}
	svc := newDevicesService(t, repo)

	err := svc.Unregister(context.Background(), uuid.New(), "tok-missing")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestUnregisterByIDScopesToOwner(t *testing.T) {
	repo := &stubDevicesRepo{deactivated: true}
	svc := newDevicesService(t, repo)
	deviceID := uuid.New()

	require.NoError(t, svc.UnregisterByID(context.Background(), uuid.New(), deviceID))
	assert.Equal(t, deviceID, repo.lastDeviceID)

	repo.deactivated = false
	err := svc.UnregisterByID(context.Background(), uuid.New(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestRetireTokenIgnoresEmpty(t *testing.T) {
	repo := &stubDevicesRepo{tokenRetired: 2}
	svc := newDevicesService(t, repo)
	ctx := context.Background()

	require.NoError(t, svc.RetireToken(ctx, "   "))
	assert.Empty(t, repo.lastToken)

	require.NoError(t, svc.RetireToken(ctx, "tok-dead"))
	assert.Equal(t, "tok-dead", repo.lastToken)
}
