package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"log/slog"

	coreconfig "github.com/connectcare/ussd/core/config"
	"github.com/connectcare/ussd/core/logger"
	"github.com/connectcare/ussd/core/metrics"
	"github.com/connectcare/ussd/core/ussd/netutil"
)

// Error kinds surfaced to the menu layer. Callers distinguish them with
// errors.Is; neither carries backend detail suitable for subscribers.
var (
	// ErrRejected means the backend answered with a non-2xx status.
	ErrRejected = errors.New("backend rejected request")
	// ErrUnreachable means the request never produced an HTTP response.
	ErrUnreachable = errors.New("backend unreachable")
)

const (
	defaultDialTimeout       = 5 * time.Second
	defaultTLSHandshake      = 5 * time.Second
	defaultIdleConnTimeout   = 30 * time.Second
	defaultResponseTimeout   = 5 * time.Second
	defaultKeepAliveInterval = 30 * time.Second
)

// Client calls the ConnectCare REST API. A failed call surfaces
// immediately; a stuck USSD session times out on the gateway side,
// so the client never retries on its own.
type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a Client from config. The transport is tuned for short
// synchronous calls inside a gateway callback window.
func New(cfg coreconfig.BackendConfig) *Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: defaultDialTimeout, KeepAlive: defaultKeepAliveInterval}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   defaultTLSHandshake,
		ResponseHeaderTimeout: defaultResponseTimeout,
		ExpectContinueTimeout: 1 * time.Second,
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	return &Client{
		baseURL: cfg.BaseURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}
}

// RegisterPhone creates an account keyed by phone number.
func (c *Client) RegisterPhone(ctx context.Context, fullName, phone, password string) (AuthResult, error) {
	var out AuthResult
	err := c.call(ctx, "auth.register", http.MethodPost, "/auth/register-phone", "", map[string]string{
		"full_name": fullName,
		"phone":     phone,
		"password":  password,
	}, &out)
	return out, err
}

// LoginPhone authenticates an existing account by phone number.
func (c *Client) LoginPhone(ctx context.Context, phone, password string) (AuthResult, error) {
	var out AuthResult
	err := c.call(ctx, "auth.login", http.MethodPost, "/auth/login-phone", "", map[string]string{
		"phone":    phone,
		"password": password,
	}, &out)
	return out, err
}

// PatientConsultations lists the patient's consultation history.
func (c *Client) PatientConsultations(ctx context.Context, token string, patientID int64) ([]Consultation, error) {
	var out []Consultation
	err := c.call(ctx, "consultations.list", http.MethodGet, fmt.Sprintf("/consultations/patient/%d", patientID), token, nil, &out)
	return out, err
}

// PatientPayments lists the patient's payment history.
func (c *Client) PatientPayments(ctx context.Context, token string, patientID int64) ([]Payment, error) {
	var out []Payment
	err := c.call(ctx, "payments.list", http.MethodGet, fmt.Sprintf("/payments/patient/%d", patientID), token, nil, &out)
	return out, err
}

// CreateConsultation records a new consultation and returns its id.
func (c *Client) CreateConsultation(ctx context.Context, token string, req ConsultationRequest) (int64, error) {
	var out struct {
		ID int64 `json:"id"`
	}
	err := c.call(ctx, "consultations.create", http.MethodPost, "/consultations", token, req, &out)
	return out.ID, err
}

// CreatePayment records a payment linked to a consultation.
func (c *Client) CreatePayment(ctx context.Context, token string, req PaymentRequest) error {
	return c.call(ctx, "payments.create", http.MethodPost, "/payments", token, req, nil)
}

// call performs one synchronous round trip and decodes the JSON reply
// into out when out is non-nil.
func (c *Client) call(ctx context.Context, operation, method, path, token string, body, out any) error {
	const op = "backend.call"
	start := time.Now()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode %s: %w", op, operation, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build %s: %w", op, operation, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.BackendFailures.WithLabelValues(operation).Inc()
		logger.BK.WarnContext(ctx, "backend request failed",
			slog.String("event", "backend.call"),
			slog.String("operation", operation),
			slog.String("status", "fail"),
			slog.Bool("retryable", netutil.ShouldRetry(err)),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%s: %s: %w", op, operation, ErrUnreachable)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.BackendFailures.WithLabelValues(operation).Inc()
		detail := readErrorDetail(resp.Body)
		logger.BK.WarnContext(ctx, "backend rejected request",
			slog.String("event", "backend.call"),
			slog.String("operation", operation),
			slog.String("status", "fail"),
			slog.Int("http_code", resp.StatusCode),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", detail),
		)
		return fmt.Errorf("%s: %s: status %d: %w", op, operation, resp.StatusCode, ErrRejected)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			metrics.BackendFailures.WithLabelValues(operation).Inc()
			return fmt.Errorf("%s: decode %s: %w", op, operation, err)
		}
	}

	if logger.ShouldSampleDebug() {
		logger.BK.DebugContext(ctx, "backend call ok",
			slog.String("event", "backend.call"),
			slog.String("operation", operation),
			slog.String("status", "ok"),
			slog.Duration("duration", logger.Took(start)),
		)
	}
	return nil
}

// readErrorDetail extracts the API's error message for logs only.
// Subscribers never see it.
func readErrorDetail(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, 2048))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &parsed) == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return logger.SanitizeLimit(string(raw), 200)
}
