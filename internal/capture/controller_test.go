package capture

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stcam/internal/smartthings"
	"stcam/internal/storage"
)

// fakeTokens is a TokenSource whose refresh rotates to the next token in the
// list, mimicking the manager's behavior after a 401
type fakeTokens struct {
	mu              sync.Mutex
	tokens          []string
	idx             int
	refreshErr      error
	validTokenErr   error
	refreshCalls    int
	invalidateCalls int
}

func (f *fakeTokens) ValidToken(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.validTokenErr != nil {
		return "", f.validTokenErr
	}
	return f.tokens[f.idx], nil
}

func (f *fakeTokens) Refresh(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshCalls++
	if f.refreshErr != nil {
		return f.refreshErr
	}
	if f.idx < len(f.tokens)-1 {
		f.idx++
	}
	return nil
}

func (f *fakeTokens) Invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidateCalls++
}

type fakeWriter struct {
	imagePath string
	stem      string
	err       error
}

func (f *fakeWriter) Write(imagePath, stem string) (string, error) {
	f.imagePath = imagePath
	f.stem = stem
	if f.err != nil {
		return "", f.err
	}
	return filepath.Join(filepath.Dir(imagePath), "prompt_"+stem+".json"), nil
}

type fakeRecorder struct {
	records []*storage.CaptureRecord
	err     error
}

func (f *fakeRecorder) SaveCapture(ctx context.Context, rec *storage.CaptureRecord) error {
	f.records = append(f.records, rec)
	return f.err
}

// deviceServer simulates the device API: commands endpoint, status endpoint
// and the image URL the status points at
type deviceServer struct {
	t  *testing.T
	mu sync.Mutex

	commands      []string // "capability/command" in arrival order
	statusCalls   int
	downloadCalls int

	commandStatus  func(capability string) int // nil means 200
	noImage        bool
	downloadStatus int // 0 means 200

	server *httptest.Server
}

func newDeviceServer(t *testing.T) *deviceServer {
	d := &deviceServer{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /devices/dev-1/commands", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Commands []smartthings.Command `json:"commands"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Commands, 1)
		cmd := req.Commands[0]
		assert.Equal(t, "main", cmd.Component)
		assert.NotNil(t, cmd.Arguments)

		d.mu.Lock()
		d.commands = append(d.commands, cmd.Capability+"/"+cmd.Command)
		status := http.StatusOK
		if d.commandStatus != nil {
			status = d.commandStatus(cmd.Capability)
		}
		d.mu.Unlock()

		w.WriteHeader(status)
		w.Write([]byte(`{}`))
	})
	mux.HandleFunc("GET /devices/dev-1/status", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.statusCalls++
		noImage := d.noImage
		d.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if noImage {
			fmt.Fprint(w, `{"components":{"main":{"switch":{"switch":{"value":"on"}}}}}`)
			return
		}
		fmt.Fprintf(w, `{"components":{"main":{"imageCapture":{"image":{"value":"%s/image"}}}}}`, d.server.URL)
	})
	mux.HandleFunc("GET /image", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		d.downloadCalls++
		status := d.downloadStatus
		d.mu.Unlock()

		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Write([]byte("jpeg-bytes"))
	})
	d.server = httptest.NewServer(mux)
	t.Cleanup(d.server.Close)
	return d
}

func (d *deviceServer) handle() smartthings.Handle {
	return smartthings.Handle{DeviceID: "dev-1", APIBase: d.server.URL}
}

func (d *deviceServer) commandLog() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]string, len(d.commands))
	copy(out, d.commands)
	return out
}

func (d *deviceServer) counts() (statusCalls, downloadCalls int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.statusCalls, d.downloadCalls
}

func newTestController(t *testing.T, tokens TokenSource, outputDir string) *Controller {
	t.Helper()
	return NewController(ControllerConfig{
		SettleDelay: 3 * time.Second,
		OutputDir:   outputDir,
	}, smartthings.NewClient(5*time.Second, nil), tokens,
		NewMockClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)), nil)
}

func TestController_Capture_Success(t *testing.T) {
	srv := newDeviceServer(t)
	tokens := &fakeTokens{tokens: []string{"tok-1"}}
	dir := t.TempDir()

	c := newTestController(t, tokens, dir)
	writer := &fakeWriter{}
	c.SetWriter(writer)

	res := c.Capture(context.Background(), srv.handle())
	require.NoError(t, res.Err)

	assert.Equal(t, []string{"Refresh/refresh", "imageCapture/take"}, srv.commandLog())
	assert.Equal(t, "ok", res.Outcome())
	assert.Equal(t, "dev-1", res.DeviceID)
	assert.NotEmpty(t, res.CaptureID)
	assert.True(t, res.FinishedAt.After(res.StartedAt))

	data, err := os.ReadFile(res.ImagePath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
	assert.Contains(t, filepath.Base(res.ImagePath), "capture_20250601_")

	assert.Equal(t, res.ImagePath, writer.imagePath)
	assert.Equal(t, res.PromptPath, filepath.Join(dir, "prompt_"+writer.stem+".json"))
	assert.Zero(t, tokens.refreshCalls)
}

func TestController_Capture_RefreshCommandFailureIsAdvisory(t *testing.T) {
	srv := newDeviceServer(t)
	srv.commandStatus = func(capability string) int {
		if capability == "Refresh" {
			return http.StatusInternalServerError
		}
		return http.StatusOK
	}
	tokens := &fakeTokens{tokens: []string{"tok-1"}}

	c := newTestController(t, tokens, t.TempDir())
	res := c.Capture(context.Background(), srv.handle())

	require.NoError(t, res.Err)
	assert.Equal(t, "ok", res.Outcome())
}

func TestController_Capture_TakeCommandFails(t *testing.T) {
	srv := newDeviceServer(t)
	srv.commandStatus = func(capability string) int {
		if capability == "imageCapture" {
			return http.StatusUnprocessableEntity
		}
		return http.StatusOK
	}
	tokens := &fakeTokens{tokens: []string{"tok-1"}}

	c := newTestController(t, tokens, t.TempDir())
	res := c.Capture(context.Background(), srv.handle())

	assert.ErrorIs(t, res.Err, ErrCommandFailed)
	assert.Equal(t, "command_failed", res.Outcome())
	statusCalls, _ := srv.counts()
	assert.Zero(t, statusCalls, "status should not be polled after a rejected take")
}

func TestController_Capture_NoImage(t *testing.T) {
	srv := newDeviceServer(t)
	srv.noImage = true
	tokens := &fakeTokens{tokens: []string{"tok-1"}}
	dir := t.TempDir()

	c := newTestController(t, tokens, dir)
	res := c.Capture(context.Background(), srv.handle())

	assert.ErrorIs(t, res.Err, ErrNoImage)
	assert.Equal(t, "no_image", res.Outcome())
	_, downloadCalls := srv.counts()
	assert.Zero(t, downloadCalls)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestController_Capture_DownloadFailure(t *testing.T) {
	srv := newDeviceServer(t)
	srv.downloadStatus = http.StatusNotFound
	tokens := &fakeTokens{tokens: []string{"tok-1"}}
	dir := t.TempDir()

	c := newTestController(t, tokens, dir)
	res := c.Capture(context.Background(), srv.handle())

	assert.ErrorIs(t, res.Err, ErrDownloadFailed)
	assert.Equal(t, "download_failed", res.Outcome())
	assert.Empty(t, res.ImagePath)

	// No partial file is left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestController_Capture_RecoversFrom401Once(t *testing.T) {
	srv := newDeviceServer(t)
	var rejected bool
	srv.commandStatus = func(capability string) int {
		if !rejected {
			rejected = true
			return http.StatusUnauthorized
		}
		return http.StatusOK
	}
	tokens := &fakeTokens{tokens: []string{"stale", "fresh"}}

	c := newTestController(t, tokens, t.TempDir())
	res := c.Capture(context.Background(), srv.handle())

	require.NoError(t, res.Err)
	assert.Equal(t, 1, tokens.refreshCalls)
	assert.Equal(t, 1, tokens.invalidateCalls)
	// The rejected Refresh command is retried with the fresh token.
	assert.Equal(t, []string{"Refresh/refresh", "Refresh/refresh", "imageCapture/take"}, srv.commandLog())
}

func TestController_Capture_SecondUnauthorizedFails(t *testing.T) {
	srv := newDeviceServer(t)
	srv.commandStatus = func(capability string) int {
		return http.StatusUnauthorized
	}
	tokens := &fakeTokens{tokens: []string{"always-rejected"}}

	c := newTestController(t, tokens, t.TempDir())
	res := c.Capture(context.Background(), srv.handle())

	assert.ErrorIs(t, res.Err, ErrAuthFailed)
	assert.Equal(t, "auth_failed", res.Outcome())
	assert.Equal(t, 1, tokens.refreshCalls, "exactly one refresh, no retry loop")
	assert.Len(t, srv.commandLog(), 2, "the step is retried once after refresh, then fails")
}

func TestController_Capture_RefreshFailureAfter401(t *testing.T) {
	srv := newDeviceServer(t)
	srv.commandStatus = func(capability string) int {
		return http.StatusUnauthorized
	}
	tokens := &fakeTokens{tokens: []string{"stale"}, refreshErr: errors.New("endpoint down")}

	c := newTestController(t, tokens, t.TempDir())
	res := c.Capture(context.Background(), srv.handle())

	assert.ErrorIs(t, res.Err, ErrAuthFailed)
	assert.Equal(t, 1, tokens.refreshCalls)
}

func TestController_Capture_TokenSourceFailure(t *testing.T) {
	srv := newDeviceServer(t)
	tokens := &fakeTokens{validTokenErr: errors.New("no credentials")}

	c := newTestController(t, tokens, t.TempDir())
	res := c.Capture(context.Background(), srv.handle())

	assert.ErrorIs(t, res.Err, ErrAuthFailed)
	assert.Empty(t, srv.commandLog(), "no device request without a token")
}

func TestController_Capture_WriterFailureKeepsImage(t *testing.T) {
	srv := newDeviceServer(t)
	tokens := &fakeTokens{tokens: []string{"tok-1"}}

	c := newTestController(t, tokens, t.TempDir())
	c.SetWriter(&fakeWriter{err: errors.New("disk full")})

	res := c.Capture(context.Background(), srv.handle())

	require.NoError(t, res.Err, "a writer failure does not fail the capture")
	assert.NotEmpty(t, res.ImagePath)
	assert.Empty(t, res.PromptPath)
}

func TestController_Capture_RecordsHistory(t *testing.T) {
	srv := newDeviceServer(t)
	srv.noImage = true
	tokens := &fakeTokens{tokens: []string{"tok-1"}}
	recorder := &fakeRecorder{}

	c := newTestController(t, tokens, t.TempDir())
	c.SetRecorder(recorder)

	res := c.Capture(context.Background(), srv.handle())
	assert.ErrorIs(t, res.Err, ErrNoImage)

	require.Len(t, recorder.records, 1)
	rec := recorder.records[0]
	assert.Equal(t, res.CaptureID, rec.ID)
	assert.Equal(t, "dev-1", rec.DeviceID)
	assert.Equal(t, "no_image", rec.Outcome)
	assert.NotEmpty(t, rec.Error)
}

func TestController_Capabilities(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /devices/dev-1", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{
			"deviceId": "dev-1",
			"label": "Porch Camera",
			"components": [
				{"id": "main", "capabilities": [{"id": "imageCapture", "version": 1}, {"id": "Refresh", "version": 1}]}
			]
		}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	tokens := &fakeTokens{tokens: []string{"tok-1"}}
	c := newTestController(t, tokens, t.TempDir())

	device, err := c.Capabilities(context.Background(), smartthings.Handle{DeviceID: "dev-1", APIBase: server.URL})
	require.NoError(t, err)
	assert.Equal(t, "Porch Camera", device.Label)
	require.Len(t, device.Components, 1)
	assert.Len(t, device.Components[0].Capabilities, 2)
}

func TestResult_Outcome(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"success", nil, "ok"},
		{"auth", fmt.Errorf("%w: nope", ErrAuthFailed), "auth_failed"},
		{"command", fmt.Errorf("%w: nope", ErrCommandFailed), "command_failed"},
		{"no image", ErrNoImage, "no_image"},
		{"download", fmt.Errorf("%w: nope", ErrDownloadFailed), "download_failed"},
		{"other", errors.New("boom"), "error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Result{Err: tt.err}.Outcome())
		})
	}
}
