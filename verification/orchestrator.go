package verification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go-elife-client/api"
	"go-elife-client/models"

	"github.com/google/uuid"
)

type Camera interface {
	Capture(ctx context.Context, quality float64) (models.ImageFile, error)
}

type Backend interface {
	DetectFace(ctx context.Context, token string, frame models.ImageFile) (*models.DetectFaceResponse, error)
	VerifyImages(ctx context.Context, token string, frames []models.ImageFile) (*models.VerifyImagesResponse, error)
}

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Notifier receives every state change of a session.
type Notifier interface {
	Notify(ctx context.Context, transition models.Transition) error
}

// Orchestrator drives one verification session: detection polling, frame
// capture, server verification and the retry/escalation policy.
type Orchestrator struct {
	camera   Camera
	backend  Backend
	tokens   TokenSource
	notifier Notifier
	config   Config

	running atomic.Bool

	// publishMutex serialises state changes with Stop.
	publishMutex sync.Mutex
	stopped      bool
	cancel       context.CancelFunc

	mutex    sync.Mutex
	snapshot Snapshot
}

func NewOrchestrator(camera Camera, backend Backend, tokens TokenSource, notifier Notifier, config Config) *Orchestrator {
	return &Orchestrator{
		camera:   camera,
		backend:  backend,
		tokens:   tokens,
		notifier: notifier,
		config:   config.withDefaults(),
		snapshot: Snapshot{State: StateIdle, Steps: pendingSteps()},
	}
}

func (o *Orchestrator) Config() Config {
	return o.config
}

func (o *Orchestrator) Snapshot() Snapshot {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.snapshot.clone()
}

// Run executes a verification session until it succeeds, escalates or ctx is
// cancelled. Cancellation of ctx is observed before every state change; use
// Stop to end the session with no transition published after it returns.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, ErrCycleInProgress
	}
	defer o.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	o.publishMutex.Lock()
	o.stopped = false
	o.cancel = cancel
	o.publishMutex.Unlock()
	defer func() {
		o.publishMutex.Lock()
		o.cancel = nil
		o.publishMutex.Unlock()
		cancel()
	}()

	sessionId := uuid.NewString()
	err := o.update(ctx, func(s *Snapshot) {
		*s = Snapshot{
			SessionId: sessionId,
			State:     StateIdle,
			Total:     o.config.CaptureCount,
			Steps:     pendingSteps(),
		}
	})
	if err != nil {
		return nil, err
	}
	slog.Info("Verification session started", "session_id", sessionId, "max_attempts", o.config.MaxAttempts)

	for {
		kind, message, err := o.attempt(ctx)
		if err != nil {
			return nil, err
		}
		if kind == "" {
			return o.finish(ctx, OutcomeVerified, StateSuccess, message)
		}

		result, err := o.recordFailure(ctx, kind, message)
		if err != nil || result != nil {
			return result, err
		}
	}
}

// Stop ends the session in progress, if any. It waits for a transition that
// is being published; afterwards the session changes no state and Run returns
// context.Canceled. Stop must not be called from a Notifier.
func (o *Orchestrator) Stop() {
	o.publishMutex.Lock()
	defer o.publishMutex.Unlock()
	if o.cancel == nil {
		return
	}
	o.stopped = true
	o.cancel()
}

// attempt runs one detect → capture → verify cycle. An empty kind means the
// attempt passed; a non-nil error aborts the session.
func (o *Orchestrator) attempt(ctx context.Context) (FailureKind, string, error) {
	if err := o.awaitFace(ctx); err != nil {
		return "", "", err
	}

	frames, err := o.captureSequence(ctx)
	if errors.Is(err, ErrNoImagesCaptured) {
		slog.Warn("Capture sequence produced no images", "session_id", o.sessionId())
		return FailureCapture, ERR_CAPTURE_FAILED, nil
	}
	if err != nil {
		return "", "", err
	}

	response, err := o.submit(ctx, frames)
	if ctx.Err() != nil {
		return "", "", ctx.Err()
	}
	if err != nil {
		if isSessionError(err) {
			return "", "", err
		}
		slog.Warn("Verification request failed", "session_id", o.sessionId(), "error", err)
		message := api.ServerMessage(err)
		if message == "" {
			message = ERR_VERIFICATION_ERROR
		}
		return FailureTransport, message, nil
	}

	if passed(response) {
		message := response.Message
		if message == "" {
			message = "Your identity has been verified successfully."
		}
		return "", message, nil
	}
	return FailureContent, failureMessage(response), nil
}

// awaitFace polls detection until a face is found, then waits the confirmation delay.
func (o *Orchestrator) awaitFace(ctx context.Context) error {
	err := o.update(ctx, func(s *Snapshot) {
		s.State = StateFaceDetecting
		s.Captured = 0
		s.Steps = pendingSteps()
		s.Message = ""
	})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(o.config.PollInterval)
	defer ticker.Stop()

	for {
		found, err := o.detectOnce(ctx)
		if err != nil {
			return err
		}
		if found {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	ticker.Stop()

	err = o.update(ctx, func(s *Snapshot) {
		s.Steps[StepFaceDetected] = StatusSuccess
	})
	if err != nil {
		return err
	}
	return sleep(ctx, o.config.ConfirmDelay)
}

// detectOnce reports whether a face is visible. Camera and backend errors
// count as "no face yet"; only cancellation and a missing session are returned.
func (o *Orchestrator) detectOnce(ctx context.Context) (bool, error) {
	frame, err := o.camera.Capture(ctx, o.config.DetectQuality)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		slog.Debug("Detection frame capture failed", "session_id", o.sessionId(), "error", err)
		return false, nil
	}

	token, err := o.tokens.Token(ctx)
	if err != nil {
		return false, fmt.Errorf("face detection requires a session: %w", err)
	}

	response, err := o.backend.DetectFace(ctx, token, frame)
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		slog.Debug("Face detection failed", "session_id", o.sessionId(), "error", err)
		return false, nil
	}
	return len(response.Faces) > 0, nil
}

// captureSequence captures up to CaptureCount frames, tolerating individual failures.
func (o *Orchestrator) captureSequence(ctx context.Context) ([]models.ImageFile, error) {
	total := o.config.CaptureCount
	err := o.update(ctx, func(s *Snapshot) {
		s.State = StateCapturing
		s.Captured = 0
		s.Total = total
	})
	if err != nil {
		return nil, err
	}

	frames := make([]models.ImageFile, 0, total)
	for i := 0; i < total; i++ {
		if i > 0 {
			if err := sleep(ctx, o.config.CaptureDelay); err != nil {
				return nil, err
			}
		}

		frame, err := o.camera.Capture(ctx, o.config.CaptureQuality)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if err != nil {
			slog.Warn("Capture failed", "session_id", o.sessionId(), "capture", i+1, "error", err)
			continue
		}

		frames = append(frames, frame)
		captured := len(frames)
		if err := o.update(ctx, func(s *Snapshot) { s.Captured = captured }); err != nil {
			return nil, err
		}
	}

	if len(frames) == 0 {
		return nil, ErrNoImagesCaptured
	}
	return frames, nil
}

// submit uploads the frames and projects the response onto the step statuses.
func (o *Orchestrator) submit(ctx context.Context, frames []models.ImageFile) (*models.VerifyImagesResponse, error) {
	token, err := o.tokens.Token(ctx)
	if err != nil {
		return nil, &sessionError{err: err}
	}

	err = o.update(ctx, func(s *Snapshot) {
		s.State = StateVerifying
		s.Steps[StepDeepfakeCheck] = StatusProcessing
		s.Steps[StepIdentityMatch] = StatusProcessing
	})
	if err != nil {
		return nil, err
	}

	response, err := o.backend.VerifyImages(ctx, token, frames)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		_ = o.update(ctx, func(s *Snapshot) {
			s.Steps[StepDeepfakeCheck] = StatusError
			s.Steps[StepIdentityMatch] = StatusError
		})
		return nil, err
	}

	err = o.update(ctx, func(s *Snapshot) {
		s.Steps[StepFaceDetected] = statusOf(faceDetected(response))
		s.Steps[StepDeepfakeCheck] = statusOf(!response.DeepfakeDetected)
		s.Steps[StepIdentityMatch] = statusOf(response.Match)
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Verification result",
		"session_id", o.sessionId(),
		"success", response.Success,
		"deepfake_detected", response.DeepfakeDetected,
		"match", response.Match,
		"similarity", response.Similarity)
	return response, nil
}

// recordFailure applies the attempt budget. It returns a result once the
// session has reached a terminal state.
func (o *Orchestrator) recordFailure(ctx context.Context, kind FailureKind, message string) (*Result, error) {
	var attempts, infra int
	err := o.update(ctx, func(s *Snapshot) {
		if o.config.SeparateInfraFailures && kind != FailureContent {
			s.InfraFailures++
		} else {
			s.Attempt++
		}
		s.State = StateFailure
		s.Message = message
		attempts = s.Attempt
		infra = s.InfraFailures
	})
	if err != nil {
		return nil, err
	}

	slog.Warn("Verification attempt failed",
		"session_id", o.sessionId(),
		"kind", kind,
		"attempt", attempts,
		"infra_failures", infra)

	switch {
	case attempts >= o.config.MaxAttempts:
		return o.finish(ctx, OutcomeEscalated, StateEscalated, ERR_ESCALATED)
	case o.config.SeparateInfraFailures && infra >= o.config.MaxInfraFailures:
		return o.finish(ctx, OutcomeUnavailable, StateUnavailable, ERR_UNAVAILABLE)
	}
	return nil, nil
}

func (o *Orchestrator) finish(ctx context.Context, outcome Outcome, state State, message string) (*Result, error) {
	var snapshot Snapshot
	err := o.update(ctx, func(s *Snapshot) {
		s.State = state
		s.Message = message
		snapshot = s.clone()
	})
	if err != nil {
		return nil, err
	}

	slog.Info("Verification session finished", "session_id", snapshot.SessionId, "outcome", outcome, "attempts", snapshot.Attempt)
	return &Result{
		SessionId:     snapshot.SessionId,
		Outcome:       outcome,
		Attempts:      snapshot.Attempt,
		InfraFailures: snapshot.InfraFailures,
		Message:       message,
		Route:         RouteFor(outcome),
	}, nil
}

// update mutates the snapshot and publishes it, unless the session was
// stopped or ctx is already done.
func (o *Orchestrator) update(ctx context.Context, mutate func(*Snapshot)) error {
	o.publishMutex.Lock()
	defer o.publishMutex.Unlock()
	if o.stopped {
		return context.Canceled
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	o.mutex.Lock()
	mutate(&o.snapshot)
	transition := o.snapshot.transition()
	o.mutex.Unlock()

	if o.notifier == nil {
		return nil
	}
	if err := o.notifier.Notify(ctx, transition); err != nil {
		slog.Warn("Failed to publish transition", "session_id", transition.SessionId, "error", err)
	}
	return nil
}

func (o *Orchestrator) sessionId() string {
	o.mutex.Lock()
	defer o.mutex.Unlock()
	return o.snapshot.SessionId
}

func (s Snapshot) transition() models.Transition {
	steps := make(map[string]string, len(s.Steps))
	for k, v := range s.Steps {
		steps[string(k)] = string(v)
	}
	return models.Transition{
		SessionId:     s.SessionId,
		State:         string(s.State),
		Attempt:       s.Attempt,
		InfraFailures: s.InfraFailures,
		Captured:      s.Captured,
		Total:         s.Total,
		Steps:         steps,
		Message:       s.Message,
		At:            time.Now().UTC(),
	}
}

// sessionError marks a missing or expired session during submission; it ends
// the run instead of counting as an attempt.
type sessionError struct {
	err error
}

func (e *sessionError) Error() string {
	return "verification requires a session: " + e.err.Error()
}

func (e *sessionError) Unwrap() error {
	return e.err
}

func isSessionError(err error) bool {
	var target *sessionError
	return errors.As(err, &target)
}

func faceDetected(response *models.VerifyImagesResponse) bool {
	return response.FaceDetected == nil || *response.FaceDetected
}

func passed(response *models.VerifyImagesResponse) bool {
	return response.Success && faceDetected(response) && !response.DeepfakeDetected && response.Match
}

func failureMessage(response *models.VerifyImagesResponse) string {
	if response.Message != "" {
		return response.Message
	}
	switch {
	case !faceDetected(response):
		return ERR_NO_FACE
	case response.DeepfakeDetected:
		return ERR_DEEPFAKE
	case !response.Match:
		return ERR_NO_MATCH
	}
	return ERR_VERIFICATION_FAILED
}

func statusOf(ok bool) StepStatus {
	if ok {
		return StatusSuccess
	}
	return StatusError
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
