package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"stcam/internal/idgen"
	"stcam/internal/smartthings"
	"stcam/internal/storage"
)

var (
	// ErrAuthFailed means the capture could not obtain a working token,
	// including the case of a second 401 after the one allowed refresh
	ErrAuthFailed = errors.New("authentication failed")

	// ErrCommandFailed means the imageCapture take command was rejected
	ErrCommandFailed = errors.New("device command failed")

	// ErrNoImage means the device status carried no image URL
	ErrNoImage = errors.New("no image available in device status")

	// ErrDownloadFailed means the image URL could not be downloaded
	ErrDownloadFailed = errors.New("image download failed")
)

const defaultSettleDelay = 3 * time.Second

// TokenSource supplies bearer tokens and the single-retry refresh used when
// the API answers 401
type TokenSource interface {
	ValidToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
	Invalidate()
}

// OutputWriter post-processes a downloaded image into the prompt document
// for the vision model service
type OutputWriter interface {
	Write(imagePath, stem string) (promptPath string, err error)
}

// Recorder persists one history row per capture attempt
type Recorder interface {
	SaveCapture(ctx context.Context, rec *storage.CaptureRecord) error
}

// Notifier pushes a one-line capture outcome to an external channel
type Notifier interface {
	NotifyCapture(res Result)
}

// Result is the transient outcome of one capture attempt. It is superseded
// by the next capture and not retained by the controller.
type Result struct {
	CaptureID  string    `json:"capture_id"`
	DeviceID   string    `json:"device_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	ImagePath  string    `json:"image_path,omitempty"`
	PromptPath string    `json:"prompt_path,omitempty"`
	Err        error     `json:"-"`
}

// Outcome returns the stable outcome tag for logs and storage
func (r Result) Outcome() string {
	switch {
	case r.Err == nil:
		return storage.OutcomeOK
	case errors.Is(r.Err, ErrAuthFailed):
		return storage.OutcomeAuthFailed
	case errors.Is(r.Err, ErrCommandFailed):
		return storage.OutcomeCommandFailed
	case errors.Is(r.Err, ErrNoImage):
		return storage.OutcomeNoImage
	case errors.Is(r.Err, ErrDownloadFailed):
		return storage.OutcomeDownloadFailed
	default:
		return storage.OutcomeError
	}
}

// ControllerConfig configures the capture sequence
type ControllerConfig struct {
	// SettleDelay is the wait between sending a device command and querying
	// its effect; zero selects the 3s default
	SettleDelay time.Duration

	// OutputDir receives downloaded images and prompt documents
	OutputDir string
}

// Controller orchestrates the remote capture sequence: refresh command, take
// command, status poll, image download, post-processing. It holds no state
// between calls; every Capture is self-contained.
type Controller struct {
	config   ControllerConfig
	client   *smartthings.Client
	tokens   TokenSource
	clock    Clock
	writer   OutputWriter
	recorder Recorder
	notifier Notifier
	logger   *slog.Logger
}

// NewController creates a capture controller. writer, recorder and notifier
// are optional.
func NewController(config ControllerConfig, client *smartthings.Client, tokens TokenSource, clock Clock, logger *slog.Logger) *Controller {
	if config.SettleDelay <= 0 {
		config.SettleDelay = defaultSettleDelay
	}
	if clock == nil {
		clock = RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		config: config,
		client: client,
		tokens: tokens,
		clock:  clock,
		logger: logger,
	}
}

// SetWriter attaches the output writer invoked after a successful download
func (c *Controller) SetWriter(w OutputWriter) { c.writer = w }

// SetRecorder attaches the capture history store
func (c *Controller) SetRecorder(r Recorder) { c.recorder = r }

// SetNotifier attaches the outcome notifier
func (c *Controller) SetNotifier(n Notifier) { c.notifier = n }

// Capture runs the full capture sequence against one device. Transport and
// HTTP failures become the tagged error in the Result, never a panic or a
// process-level failure. A single 401 anywhere in the sequence is recovered
// by one token refresh; a second 401 fails the attempt.
func (c *Controller) Capture(ctx context.Context, h smartthings.Handle) Result {
	res := Result{
		CaptureID: idgen.NewCapture(),
		DeviceID:  h.DeviceID,
		StartedAt: c.clock.Now(),
	}
	res.Err = c.run(ctx, h, &res)
	res.FinishedAt = c.clock.Now()

	if res.Err != nil {
		c.logger.Error("Capture failed",
			"component", "capture",
			"capture_id", res.CaptureID,
			"device_id", h.DeviceID,
			"outcome", res.Outcome(),
			"error", res.Err)
	} else {
		c.logger.Info("Capture complete",
			"component", "capture",
			"capture_id", res.CaptureID,
			"device_id", h.DeviceID,
			"image", res.ImagePath)
	}

	c.record(ctx, res)
	if c.notifier != nil {
		c.notifier.NotifyCapture(res)
	}
	return res
}

func (c *Controller) run(ctx context.Context, h smartthings.Handle, res *Result) error {
	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	// one refresh recovery is shared across the whole attempt
	retry := authRetry{controller: c, token: token}

	// the refresh command wakes the camera; treated as advisory
	err = retry.step(ctx, func(tok string) error {
		return c.client.SendCommands(ctx, h, tok, smartthings.MainCommand("Refresh", "refresh"))
	})
	if err != nil {
		if errors.Is(err, ErrAuthFailed) {
			return err
		}
		c.logger.Warn("Refresh command failed, continuing",
			"component", "capture",
			"capture_id", res.CaptureID,
			"error", err)
	}

	c.clock.Sleep(ctx, c.config.SettleDelay)

	err = retry.step(ctx, func(tok string) error {
		return c.client.SendCommands(ctx, h, tok, smartthings.MainCommand("imageCapture", "take"))
	})
	if err != nil {
		if errors.Is(err, ErrAuthFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}

	c.clock.Sleep(ctx, c.config.SettleDelay)

	var status *smartthings.DeviceStatus
	err = retry.step(ctx, func(tok string) error {
		var serr error
		status, serr = c.client.GetStatus(ctx, h, tok)
		return serr
	})
	if err != nil {
		if errors.Is(err, ErrAuthFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrCommandFailed, err)
	}

	imageURL, ok := status.ImageURL()
	if !ok {
		return ErrNoImage
	}

	stem := fmt.Sprintf("%s_%s", c.clock.Now().Format("20060102_150405"), idgen.Short())
	imagePath := filepath.Join(c.config.OutputDir, "capture_"+stem+".jpg")

	err = retry.step(ctx, func(tok string) error {
		return c.client.Download(ctx, imageURL, tok, imagePath)
	})
	if err != nil {
		if errors.Is(err, ErrAuthFailed) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	res.ImagePath = imagePath

	if c.writer != nil {
		promptPath, werr := c.writer.Write(imagePath, stem)
		if werr != nil {
			// the image is already on disk; the prompt document can be rebuilt
			c.logger.Warn("Output writer failed",
				"component", "capture",
				"capture_id", res.CaptureID,
				"error", werr)
		} else {
			res.PromptPath = promptPath
		}
	}
	return nil
}

// Capabilities fetches the device description for the capabilities surface,
// with the same single 401 recovery as the capture sequence
func (c *Controller) Capabilities(ctx context.Context, h smartthings.Handle) (*smartthings.Device, error) {
	token, err := c.tokens.ValidToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}

	retry := authRetry{controller: c, token: token}
	var device *smartthings.Device
	err = retry.step(ctx, func(tok string) error {
		var derr error
		device, derr = c.client.GetDevice(ctx, h, tok)
		return derr
	})
	if err != nil {
		return nil, err
	}
	return device, nil
}

func (c *Controller) record(ctx context.Context, res Result) {
	if c.recorder == nil {
		return
	}
	rec := &storage.CaptureRecord{
		ID:         res.CaptureID,
		DeviceID:   res.DeviceID,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
		Outcome:    res.Outcome(),
		ImagePath:  res.ImagePath,
		PromptPath: res.PromptPath,
	}
	if res.Err != nil {
		rec.Error = res.Err.Error()
	}
	if err := c.recorder.SaveCapture(ctx, rec); err != nil {
		c.logger.Warn("Failed to record capture history",
			"component", "capture",
			"capture_id", res.CaptureID,
			"error", err)
	}
}

// authRetry applies the 401 policy: on the first 401 from any step, refresh
// the token once and retry that step; any later 401 fails with
// ErrAuthFailed. No unbounded retry loop.
type authRetry struct {
	controller *Controller
	token      string
	used       bool
}

func (a *authRetry) step(ctx context.Context, fn func(token string) error) error {
	err := fn(a.token)
	if !smartthings.IsUnauthorized(err) {
		return err
	}
	if a.used {
		return fmt.Errorf("%w: request rejected again after refresh", ErrAuthFailed)
	}
	a.used = true

	c := a.controller
	c.logger.Info("Token rejected with 401, refreshing once", "component", "capture")
	c.tokens.Invalidate()
	if rerr := c.tokens.Refresh(ctx); rerr != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, rerr)
	}
	tok, terr := c.tokens.ValidToken(ctx)
	if terr != nil {
		return fmt.Errorf("%w: %v", ErrAuthFailed, terr)
	}
	a.token = tok

	err = fn(a.token)
	if smartthings.IsUnauthorized(err) {
		return fmt.Errorf("%w: request rejected again after refresh", ErrAuthFailed)
	}
	return err
}
