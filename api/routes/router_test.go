package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cashdash/cashdash-backend/internal/auth"
	"github.com/cashdash/cashdash-backend/internal/banks"
	"github.com/cashdash/cashdash-backend/internal/devices"
	"github.com/cashdash/cashdash-backend/internal/notifications"
	"github.com/cashdash/cashdash-backend/internal/orders"
	"github.com/cashdash/cashdash-backend/internal/users"
	pkgAuth "github.com/cashdash/cashdash-backend/pkg/auth"
	"github.com/cashdash/cashdash-backend/pkg/auth/session"
	"github.com/cashdash/cashdash-backend/pkg/config"
	"github.com/cashdash/cashdash-backend/pkg/db/models"
	"github.com/cashdash/cashdash-backend/pkg/enums"
	"github.com/cashdash/cashdash-backend/pkg/logger"
)

type stubOrdersService struct {
	listed  int
	claimed int
}

func (s *stubOrdersService) Create(ctx context.Context, input orders.CreateInput) (*models.Order, error) {
	return &models.Order{ID: uuid.New(), CustomerID: input.CustomerID, Status: enums.OrderStatusPending}, nil
}

func (s *stubOrdersService) Get(ctx context.Context, input orders.GetInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID, Status: enums.OrderStatusPending}, nil
}

func (s *stubOrdersService) List(ctx context.Context, input orders.ListInput) (*orders.ListResult, error) {
	s.listed++
	return &orders.ListResult{}, nil
}

func (s *stubOrdersService) Claim(ctx context.Context, input orders.ClaimInput) (*models.Order, error) {
	s.claimed++
	return &models.Order{ID: input.OrderID, RunnerID: &input.RunnerID, Status: enums.OrderStatusRunnerAccepted}, nil
}

func (s *stubOrdersService) Advance(ctx context.Context, input orders.AdvanceInput) (*orders.AdvanceResult, error) {
	return &orders.AdvanceResult{Order: &models.Order{ID: input.OrderID, Status: input.Target}}, nil
}

func (s *stubOrdersService) VerifyOtp(ctx context.Context, input orders.VerifyOtpInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID, Status: enums.OrderStatusCompleted}, nil
}

func (s *stubOrdersService) Cancel(ctx context.Context, input orders.CancelInput) (*models.Order, error) {
	return &models.Order{ID: input.OrderID, Status: enums.OrderStatusCancelled}, nil
}

func (s *stubOrdersService) PostMessage(ctx context.Context, input orders.PostMessageInput) (*models.OrderMessage, error) {
	return &models.OrderMessage{ID: uuid.New(), OrderID: input.OrderID, SenderID: input.SenderID, Body: input.Body}, nil
}

func (s *stubOrdersService) ListMessages(ctx context.Context, input orders.ListMessagesInput) ([]models.OrderMessage, error) {
	return nil, nil
}

type stubAuthService struct{}

func (stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	return &auth.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (stubAuthService) Refresh(ctx context.Context, req auth.RefreshRequest) (*auth.RefreshResponse, error) {
	return &auth.RefreshResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (stubAuthService) Logout(ctx context.Context, accessID string) error { return nil }

type stubRegisterService struct{}

func (stubRegisterService) Register(ctx context.Context, req auth.RegisterRequest) (*users.UserDTO, error) {
	return &users.UserDTO{ID: uuid.New(), Email: req.Email}, nil
}

type stubBanksService struct{}

func (stubBanksService) Create(ctx context.Context, input banks.CreateInput) (*models.BankAccount, error) {
	return &models.BankAccount{ID: uuid.New(), UserID: input.UserID, Nickname: input.Nickname}, nil
}

func (stubBanksService) List(ctx context.Context, userID uuid.UUID) ([]models.BankAccount, error) {
	return nil, nil
}

func (stubBanksService) SetPrimary(ctx context.Context, userID, bankID uuid.UUID) error { return nil }

func (stubBanksService) Deactivate(ctx context.Context, userID, bankID uuid.UUID) error { return nil }

type stubDevicesService struct {
	registered int
}

func (s *stubDevicesService) Register(ctx context.Context, input devices.RegisterInput) (*models.Device, error) {
	s.registered++
	return &models.Device{ID: uuid.New(), UserID: input.UserID, Token: input.Token}, nil
}

func (s *stubDevicesService) Unregister(ctx context.Context, userID uuid.UUID, token string) error {
	return nil
}

func (s *stubDevicesService) UnregisterByID(ctx context.Context, userID, deviceID uuid.UUID) error {
	return nil
}

func (s *stubDevicesService) ActiveDevices(ctx context.Context, userID uuid.UUID) ([]models.Device, error) {
	return nil, nil
}

func (s *stubDevicesService) ActiveDevicesForRole(ctx context.Context, userID uuid.UUID, appRole enums.DeviceAppRole) ([]models.Device, error) {
	return nil, nil
}

func (s *stubDevicesService) RetireToken(ctx context.Context, token string) error { return nil }

type stubNotificationsService struct{}

func (stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func (stubNotificationsService) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	return nil
}

func (stubNotificationsService) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	return 0, nil
}

type stubRefundsService struct {
	routed int
}

func (s *stubRefundsService) Route(ctx context.Context, orderID uuid.UUID) (*models.RefundJob, error) {
	return &models.RefundJob{ID: uuid.New(), OrderID: orderID}, nil
}

func (s *stubRefundsService) RouteForOrder(ctx context.Context, orderID uuid.UUID) error {
	s.routed++
	return nil
}

func (s *stubRefundsService) RetrySweep(ctx context.Context, updatedBefore time.Time, limit int) (int, error) {
	return 0, nil
}

type stubSessionManager struct{}

func (stubSessionManager) HasSession(ctx context.Context, accessID string) (bool, error) {
	return true, nil
}

func (stubSessionManager) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	return session.NewAccessID(), "refresh", nil
}

func (stubSessionManager) Revoke(ctx context.Context, accessID string) error { return nil }

type routerFixture struct {
	handler http.Handler
	cfg     *config.Config
	orders  *stubOrdersService
	devices *stubDevicesService
	refunds *stubRefundsService
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.JWT = config.JWTConfig{Secret: "router-test-secret", Issuer: "cashdash-test", ExpirationMinutes: 15}
	cfg.InternalAuth.SharedSecret = "internal-secret"

	ordersSvc := &stubOrdersService{}
	devicesSvc := &stubDevicesService{}
	refundsSvc := &stubRefundsService{}
	handler := NewRouter(Deps{
		Config:         cfg,
		Logger:         logger.New(logger.Options{ServiceName: "router-test"}),
		SessionManager: stubSessionManager{},
		AuthService:    stubAuthService{},
		Register:       stubRegisterService{},
		Orders:         ordersSvc,
		Banks:          stubBanksService{},
		Devices:        devicesSvc,
		Notifications:  stubNotificationsService{},
		Refunds:        refundsSvc,
	})
	return &routerFixture{handler: handler, cfg: cfg, orders: ordersSvc, devices: devicesSvc, refunds: refundsSvc}
}

func (f *routerFixture) token(t *testing.T, role enums.UserRole) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(f.cfg.JWT, time.Now(), pkgAuth.AccessTokenPayload{
		UserID: uuid.New(),
		Role:   role,
		JTI:    session.NewAccessID(),
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func (f *routerFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	f.handler.ServeHTTP(resp, req)
	return resp
}

func TestRouterHealthEndpoints(t *testing.T) {
	f := newRouterFixture(t)
	if resp := f.do(t, http.MethodGet, "/health/live", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("live: expected 200 got %d", resp.Code)
	}
	if resp := f.do(t, http.MethodGet, "/health/ready", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("ready: expected 200 got %d", resp.Code)
	}
}

func TestRouterRequiresAuthOnOrders(t *testing.T) {
	f := newRouterFixture(t)
	resp := f.do(t, http.MethodGet, "/api/v1/orders", "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if f.orders.listed != 0 {
		t.Fatal("handler ran without auth")
	}
}

func TestRouterListsOrdersForAuthedUser(t *testing.T) {
	f := newRouterFixture(t)
	resp := f.do(t, http.MethodGet, "/api/v1/orders", f.token(t, enums.UserRoleCustomer), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if f.orders.listed != 1 {
		t.Fatalf("expected list call, got %d", f.orders.listed)
	}
}

func TestRouterClaimIsRunnerOnly(t *testing.T) {
	f := newRouterFixture(t)
	path := "/api/v1/orders/" + uuid.NewString() + "/claim"

	resp := f.do(t, http.MethodPost, path, f.token(t, enums.UserRoleCustomer), "")
	if resp.Code != http.StatusForbidden {
		t.Fatalf("customer claim: expected 403 got %d", resp.Code)
	}
	if f.orders.claimed != 0 {
		t.Fatal("claim ran for customer")
	}

	resp = f.do(t, http.MethodPost, path, f.token(t, enums.UserRoleRunner), "")
	if resp.Code != http.StatusOK {
		t.Fatalf("runner claim: expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if f.orders.claimed != 1 {
		t.Fatalf("expected claim call, got %d", f.orders.claimed)
	}
}

func TestRouterCreateOrderIsCustomerOnly(t *testing.T) {
	f := newRouterFixture(t)
	body := `{"amount_cents":5000,"delivery_address":{"line1":"1 Main St","city":"Austin","state":"TX","postal_code":"78701","country":"US","lat":30.26,"lng":-97.74}}`

	resp := f.do(t, http.MethodPost, "/api/v1/orders", f.token(t, enums.UserRoleRunner), body)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("runner create: expected 403 got %d", resp.Code)
	}

	resp = f.do(t, http.MethodPost, "/api/v1/orders", f.token(t, enums.UserRoleCustomer), body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("customer create: expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRouterRegistersDevice(t *testing.T) {
	f := newRouterFixture(t)
	body := `{"token":"tok-1","platform":"ios","app_role":"customer_app"}`
	resp := f.do(t, http.MethodPost, "/api/v1/devices", f.token(t, enums.UserRoleCustomer), body)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if f.devices.registered != 1 {
		t.Fatalf("expected register call, got %d", f.devices.registered)
	}
}

func TestRouterInternalRefundRequiresSharedSecret(t *testing.T) {
	f := newRouterFixture(t)
	path := "/internal/v1/orders/" + uuid.NewString() + "/refund"

	resp := f.do(t, http.MethodPost, path, "", "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("no secret: expected 401 got %d", resp.Code)
	}
	if f.refunds.routed != 0 {
		t.Fatal("refund ran without secret")
	}

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(""))
	req.Header.Set("X-Internal-Secret", "internal-secret")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("with secret: expected 202 got %d: %s", rec.Code, rec.Body.String())
	}
	if f.refunds.routed != 1 {
		t.Fatalf("expected refund call, got %d", f.refunds.routed)
	}
}
