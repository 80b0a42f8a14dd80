package push

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cashdash/cashdash-backend/pkg/config"
)

const (
	fcmScope     = "https://www.googleapis.com/auth/firebase.messaging"
	fcmGrantType = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	fcmSendURL   = "https://fcm.googleapis.com/v1/projects/%s/messages:send"
)

// FCMSender delivers notifications through the FCM HTTP v1 API. Each send
// authenticates with a short-lived OAuth bearer obtained by exchanging an
// RS256 service-account assertion; the bearer is cached until close to expiry.
type FCMSender struct {
	cfg        config.FCMConfig
	httpClient *http.Client
	signingKey *rsa.PrivateKey
	sendURL    string

	mu          sync.Mutex
	bearer      string
	bearerUntil time.Time
	now         func() time.Time
}

// NewFCMSender parses the service-account key and builds the sender.
func NewFCMSender(cfg config.FCMConfig) (*FCMSender, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("fcm credentials missing")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse fcm private key: %w", err)
	}
	return &FCMSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.SendTimeout},
		signingKey: key,
		sendURL:    fmt.Sprintf(fcmSendURL, cfg.ProjectID),
		now:        time.Now,
	}, nil
}

// Name identifies the gateway in logs and metrics.
func (s *FCMSender) Name() string {
	return "fcm"
}

// Send posts one notification to one device token.
func (s *FCMSender) Send(ctx context.Context, token string, note Note) error {
	bearer, err := s.accessToken(ctx)
	if err != nil {
		return fmt.Errorf("fcm access token: %w", err)
	}

	body, err := json.Marshal(fcmSendRequest{
		Message: fcmMessage{
			Token: token,
			Notification: fcmNotification{
				Title: note.Title,
				Body:  note.Body,
			},
			Data: note.Data,
		},
	})
	if err != nil {
		return fmt.Errorf("encode fcm message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sendURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build fcm request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post fcm message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode == http.StatusNotFound || strings.Contains(string(raw), "UNREGISTERED") {
		return ErrTokenUnregistered
	}
	return fmt.Errorf("fcm send failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
}

// accessToken returns a cached bearer or exchanges a fresh assertion.
func (s *FCMSender) accessToken(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bearer != "" && s.now().Before(s.bearerUntil) {
		return s.bearer, nil
	}

	assertion, err := s.signAssertion()
	if err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("grant_type", fcmGrantType)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("exchange assertion: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 16384))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token response missing access_token")
	}

	lifetime := time.Duration(payload.ExpiresIn) * time.Second
	s.bearer = payload.AccessToken
	s.bearerUntil = s.now().Add(lifetime - s.cfg.TokenRefreshMargin)
	return s.bearer, nil
}

func (s *FCMSender) signAssertion() (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"iss":   s.cfg.ClientEmail,
		"scope": fcmScope,
		"aud":   s.cfg.TokenURL,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign fcm assertion: %w", err)
	}
	return signed, nil
}

type fcmSendRequest struct {
	Message fcmMessage `json:"message"`
}

type fcmMessage struct {
	Token        string            `json:"token"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
