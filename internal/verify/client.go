// Package verify implements the client side of the license verification
// protocol.
//
// Each call builds a fresh signed request: the machine fingerprint is
// recomputed, the timestamp is taken at call time, and the signature
// covers license_id followed by the timestamp. The client distinguishes
// three result shapes the caller must treat differently:
//
//   - a parsed outcome with Authorized true or false (the server spoke)
//   - an unauthorized outcome synthesized from a non-200 status
//   - a network error (the server was never reached, or lied about JSON)
//
// A network error is never an authorization verdict.
package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "overload/internal/errors"
	"overload/internal/fingerprint"
	"overload/internal/signature"
)

const (
	// verifyPath is the well-known endpoint suffix, appended to the base
	// URL unless already present.
	verifyPath = "/api/v1/verify"

	// requestTimeout bounds a single check so the loop can never hang on
	// a stalled connection.
	requestTimeout = 10 * time.Second
)

// Request headers.
const (
	headerLicenseID  = "X-License-ID"
	headerTimestamp  = "X-Timestamp"
	headerSignature  = "X-Signature"
	headerFirstCheck = "X-First-Check"
)

// requestBody is the JSON payload of a verification call.
type requestBody struct {
	LicenseID          string `json:"license_id"`
	MachineFingerprint string `json:"machine_fingerprint"`
	Timestamp          int64  `json:"timestamp"`
}

// Outcome is the server's verdict, fully parsed or not at all. The
// override fields are advisory; the execution controller decides whether
// to apply them.
type Outcome struct {
	Authorized      bool    `json:"authorized"`
	Message         string  `json:"message"`
	ExpiresIn       *int64  `json:"expires_in,omitempty"`
	CheckIntervalMS *uint64 `json:"check_interval_ms,omitempty"`
	KillMethod      *string `json:"kill_method,omitempty"`
}

// Client verifies a license against a single authority.
type Client struct {
	httpClient *http.Client
	endpoint   string
	licenseID  string
	secret     []byte
	logger     *slog.Logger

	// now and fingerprintFn are call-time inputs, injectable in tests.
	now           func() time.Time
	fingerprintFn func() string
}

// NewClient builds a verification client for the given identity. The
// transport keeps certificate validation enabled; there is deliberately
// no insecure-TLS opt-out.
func NewClient(serverURL, licenseID, sharedSecret string, logger *slog.Logger) *Client {
	return &Client{
		httpClient:    &http.Client{Timeout: requestTimeout},
		endpoint:      Endpoint(serverURL),
		licenseID:     licenseID,
		secret:        []byte(sharedSecret),
		logger:        logger,
		now:           time.Now,
		fingerprintFn: fingerprint.Machine,
	}
}

// Endpoint appends the verification path to a base URL idempotently.
func Endpoint(serverURL string) string {
	clean := strings.TrimRight(serverURL, "/")
	if strings.HasSuffix(clean, verifyPath) {
		return clean
	}
	return clean + verifyPath
}

// Verify performs one verification call. firstCheck marks the initial
// startup check; servers may apply a different trust policy to it than
// to periodic re-checks.
func (c *Client) Verify(ctx context.Context, firstCheck bool) (*Outcome, error) {
	timestamp := c.now().Unix()
	fp := c.fingerprintFn()
	sig := signature.Sign([]byte(c.licenseID+strconv.FormatInt(timestamp, 10)), c.secret)

	body, err := json.Marshal(requestBody{
		LicenseID:          c.licenseID,
		MachineFingerprint: fp,
		Timestamp:          timestamp,
	})
	if err != nil {
		return nil, apperrors.Network("encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Network("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerLicenseID, c.licenseID)
	req.Header.Set(headerTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(headerSignature, sig)
	req.Header.Set(headerFirstCheck, strconv.FormatBool(firstCheck))

	c.logger.Debug("verification request",
		slog.String("endpoint", c.endpoint),
		slog.Bool("first_check", firstCheck))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.Network(fmt.Sprintf("POST %s", c.endpoint), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// The server answered and it was not yes. This is a denial, not
		// a transport failure: the loop takes the failure branch.
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("verification rejected",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(detail)))
		return &Outcome{Authorized: false, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}, nil
	}

	var outcome Outcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return nil, apperrors.Network("parse response", err)
	}
	return &outcome, nil
}
