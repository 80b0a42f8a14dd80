package push

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cashdash/cashdash-backend/pkg/config"
)

const (
	apnsProductionHost = "https://api.push.apple.com"
	apnsSandboxHost    = "https://api.sandbox.push.apple.com"

	// Apple accepts provider tokens between 20 and 60 minutes old.
	apnsTokenLifetime = 50 * time.Minute
)

// APNsSender delivers notifications to Apple devices. Requests are signed
// with an ES256 provider token minted from the team's signing key; there is
// no exchange step, the token goes straight on the request.
type APNsSender struct {
	cfg        config.APNsConfig
	httpClient *http.Client
	signingKey *ecdsa.PrivateKey
	host       string

	mu         sync.Mutex
	token      string
	tokenUntil time.Time
	now        func() time.Time
}

// NewAPNsSender parses the provider key and builds the sender.
func NewAPNsSender(cfg config.APNsConfig) (*APNsSender, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("apns credentials missing")
	}
	key, err := jwt.ParseECPrivateKeyFromPEM([]byte(cfg.PrivateKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("parse apns private key: %w", err)
	}
	host := apnsProductionHost
	if cfg.UseSandbox {
		host = apnsSandboxHost
	}
	return &APNsSender{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.SendTimeout},
		signingKey: key,
		host:       host,
		now:        time.Now,
	}, nil
}

// Name identifies the gateway in logs and metrics.
func (s *APNsSender) Name() string {
	return "apns"
}

// Send posts one notification to one device token.
func (s *APNsSender) Send(ctx context.Context, token string, note Note) error {
	providerToken, err := s.providerToken()
	if err != nil {
		return err
	}

	payload := apnsPayload{
		Aps: apnsAps{
			Alert: apnsAlert{
				Title: note.Title,
				Body:  note.Body,
			},
			Sound: "default",
		},
		Data: note.Data,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode apns payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.host+"/3/device/"+token, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build apns request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+providerToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apns-topic", s.cfg.Topic)
	req.Header.Set("apns-push-type", "alert")
	req.Header.Set("apns-priority", "10")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post apns notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	reason := apnsReason(raw)
	if resp.StatusCode == http.StatusGone || reason == "BadDeviceToken" || reason == "Unregistered" {
		return ErrTokenUnregistered
	}
	return fmt.Errorf("apns send failed: status %d reason %s", resp.StatusCode, reason)
}

func (s *APNsSender) providerToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Before(s.tokenUntil) {
		return s.token, nil
	}

	now := s.now()
	jwtToken := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"iss": s.cfg.TeamID,
		"iat": now.Unix(),
	})
	jwtToken.Header["kid"] = s.cfg.KeyID

	signed, err := jwtToken.SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign apns provider token: %w", err)
	}
	s.token = signed
	s.tokenUntil = now.Add(apnsTokenLifetime)
	return s.token, nil
}

func apnsReason(raw []byte) string {
	var payload struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return payload.Reason
}

type apnsPayload struct {
	Aps  apnsAps           `json:"aps"`
	Data map[string]string `json:"data,omitempty"`
}

type apnsAps struct {
	Alert apnsAlert `json:"alert"`
	Sound string    `json:"sound,omitempty"`
}

type apnsAlert struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}
