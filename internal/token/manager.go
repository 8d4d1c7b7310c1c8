package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"

	"stcam/internal/smartthings"
)

const (
	// DefaultTokenURL is the vendor-fixed SmartThings OAuth token endpoint
	DefaultTokenURL = "https://auth-global.api.smartthings.com/oauth/token"
)

var (
	// ErrExchangeFailed means the one-time authorization code exchange did
	// not produce a token pair
	ErrExchangeFailed = errors.New("authorization code exchange failed")

	// ErrRefreshFailed means a refresh attempt failed; the prior tokens are
	// retained so the integration stays recoverable
	ErrRefreshFailed = errors.New("token refresh failed")

	// ErrNoCredentials means the record holds neither a token pair nor the
	// inputs to obtain one
	ErrNoCredentials = errors.New("no access token, refresh token or authorization code available")
)

// ManagerConfig configures the token manager
type ManagerConfig struct {
	// TokenURL is the OAuth token endpoint; empty selects DefaultTokenURL
	TokenURL string

	// StorePath is the credential record file
	StorePath string

	// ClientID and ClientSecret seed the record when the store file does
	// not carry them
	ClientID     string
	ClientSecret string

	// AuthCode and RedirectURI enable a one-time authorization code
	// exchange when no refresh token exists yet
	AuthCode    string
	RedirectURI string
}

// tokenResponse is the JSON shape of the token endpoint reply
type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	ExpiresIn    json.Number `json:"expires_in"`
}

// refreshOp represents one in-flight refresh; waiters block on done and read
// err afterwards, so concurrent callers share a single refresh outcome
type refreshOp struct {
	done chan struct{}
	err  error
}

// Manager owns the credential record in memory, exchanges codes and refresh
// tokens for new token pairs and keeps the record synchronized with the
// store file. At most one refresh is in flight at a time.
type Manager struct {
	config ManagerConfig
	client *smartthings.Client
	logger *slog.Logger

	mu       sync.Mutex
	rec      Record
	inflight *refreshOp
}

// NewManager creates a manager and loads the record from the store. A
// missing store file is not an error: the record starts from the configured
// client credentials and the first exchange or refresh populates it.
func NewManager(config ManagerConfig, client *smartthings.Client, logger *slog.Logger) (*Manager, error) {
	if config.TokenURL == "" {
		config.TokenURL = DefaultTokenURL
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		config: config,
		client: client,
		logger: logger,
	}

	rec, err := LoadRecord(config.StorePath)
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		logger.Info("No token file found, starting unauthenticated",
			"component", "token",
			"path", config.StorePath)
	default:
		return nil, err
	}

	if rec.ClientID == "" {
		rec.ClientID = config.ClientID
	}
	if rec.ClientSecret == "" {
		rec.ClientSecret = config.ClientSecret
	}
	m.rec = rec

	return m, nil
}

// ValidToken returns the current access token, lazily obtaining one when the
// record has none: one refresh if a refresh token exists, otherwise one
// authorization code exchange if a code is configured. Expiry is not tracked
// proactively; a 401 downstream is the expiry signal and callers recover via
// Refresh.
func (m *Manager) ValidToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.rec.AccessToken != "" {
		tok := m.rec.AccessToken
		m.mu.Unlock()
		return tok, nil
	}
	hasRefresh := m.rec.RefreshToken != ""
	m.mu.Unlock()

	if hasRefresh {
		if err := m.Refresh(ctx); err != nil {
			return "", err
		}
	} else if m.config.AuthCode != "" {
		if err := m.ExchangeCode(ctx, m.config.AuthCode, m.config.RedirectURI); err != nil {
			return "", err
		}
	} else {
		return "", ErrNoCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.AccessToken, nil
}

// ExchangeCode performs the one-time authorization code grant. On failure
// the record is unchanged.
func (m *Manager) ExchangeCode(ctx context.Context, code, redirectURI string) error {
	m.mu.Lock()
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"client_id":     {m.rec.ClientID},
		"client_secret": {m.rec.ClientSecret},
		"code":          {code},
		"redirect_uri":  {redirectURI},
	}
	m.mu.Unlock()

	resp, err := m.requestToken(ctx, form, ErrExchangeFailed)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyResponse(resp)
	m.persistLocked()
	m.logger.Info("Authorization code exchanged for token pair", "component", "token")
	return nil
}

// Refresh exchanges the refresh token for a new token pair. Concurrent
// callers do not trigger duplicate refresh requests: they wait for the
// in-flight refresh and receive its outcome. On failure the prior tokens are
// retained, never cleared, so a transient failure does not strand the
// integration.
func (m *Manager) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if op := m.inflight; op != nil {
		m.mu.Unlock()
		select {
		case <-op.done:
			return op.err
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if m.rec.RefreshToken == "" {
		m.mu.Unlock()
		return fmt.Errorf("%w: no refresh token", ErrRefreshFailed)
	}

	op := &refreshOp{done: make(chan struct{})}
	m.inflight = op
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {m.rec.ClientID},
		"client_secret": {m.rec.ClientSecret},
		"refresh_token": {m.rec.RefreshToken},
	}
	m.mu.Unlock()

	resp, err := m.requestToken(ctx, form, ErrRefreshFailed)

	m.mu.Lock()
	if err == nil {
		m.applyResponse(resp)
		m.persistLocked()
		m.logger.Info("Token refreshed", "component", "token")
	} else {
		m.logger.Error("Token refresh failed, keeping previous tokens",
			"component", "token",
			"error", err)
	}
	op.err = err
	m.inflight = nil
	close(op.done)
	m.mu.Unlock()

	return err
}

// Invalidate drops the in-memory access token so the next ValidToken call
// refreshes. Used after the API rejects the token with a 401.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.rec.AccessToken = ""
	m.mu.Unlock()
}

// Status describes the manager state without echoing any secret material
type Status struct {
	State           string `json:"state"`
	HasAccessToken  bool   `json:"has_access_token"`
	HasRefreshToken bool   `json:"has_refresh_token"`
	ExpiresHint     string `json:"expires_hint,omitempty"`
}

// CurrentStatus reports the manager state for the status surface
func (m *Manager) CurrentStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := "unauthenticated"
	if m.inflight != nil {
		state = "refreshing"
	} else if m.rec.Authenticated() {
		state = "authenticated"
	}
	return Status{
		State:           state,
		HasAccessToken:  m.rec.AccessToken != "",
		HasRefreshToken: m.rec.RefreshToken != "",
		ExpiresHint:     m.rec.ExpiresHint,
	}
}

// Probe checks the current access token against the device status endpoint
// without attempting a refresh. A parseable 2xx status means the token
// works.
func (m *Manager) Probe(ctx context.Context, h smartthings.Handle) error {
	m.mu.Lock()
	tok := m.rec.AccessToken
	m.mu.Unlock()

	if len(tok) < 10 {
		return ErrNoCredentials
	}
	_, err := m.client.GetStatus(ctx, h, tok)
	return err
}

// requestToken posts the form to the token endpoint and validates the reply.
// failure is the sentinel to wrap errors with.
func (m *Manager) requestToken(ctx context.Context, form url.Values, failure error) (*tokenResponse, error) {
	status, body, err := m.client.Form(ctx, m.config.TokenURL, form)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", failure, err)
	}
	if status < 200 || status >= 300 {
		return nil, fmt.Errorf("%w: token endpoint returned status %d", failure, status)
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: failed to parse token response: %v", failure, err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response has no access_token", failure)
	}
	return &resp, nil
}

// applyResponse mutates the record from a successful token response. The
// refresh token is only replaced when the response carries one.
func (m *Manager) applyResponse(resp *tokenResponse) {
	m.rec.AccessToken = resp.AccessToken
	if resp.RefreshToken != "" {
		m.rec.RefreshToken = resp.RefreshToken
	}
	if resp.ExpiresIn != "" {
		m.rec.ExpiresHint = expiresHint(resp.ExpiresIn)
	}
}

// persistLocked saves the record; a save failure is reported but does not
// roll back the in-memory record, which stays authoritative until the next
// successful save reconciles the file
func (m *Manager) persistLocked() {
	if err := SaveRecord(m.config.StorePath, m.rec); err != nil {
		m.logger.Warn("Failed to save token file, keeping tokens in memory",
			"component", "token",
			"path", m.config.StorePath,
			"error", err)
	}
}

func expiresHint(n json.Number) string {
	if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil {
		return n.String()
	}
	return ""
}
