package verification

import (
	"errors"
	"time"
)

type State string

const (
	StateIdle          State = "idle"
	StateFaceDetecting State = "face_detecting"
	StateCapturing     State = "capturing"
	StateVerifying     State = "verifying"
	StateSuccess       State = "success"
	StateFailure       State = "failure"
	StateEscalated     State = "escalated"
	StateUnavailable   State = "unavailable"
)

type StepStatus string

const (
	StatusPending    StepStatus = "pending"
	StatusProcessing StepStatus = "processing"
	StatusSuccess    StepStatus = "success"
	StatusError      StepStatus = "error"
)

type Step string

const (
	StepFaceDetected  Step = "face_detected"
	StepDeepfakeCheck Step = "deepfake_check"
	StepIdentityMatch Step = "identity_match"
)

var allSteps = []Step{StepFaceDetected, StepDeepfakeCheck, StepIdentityMatch}

// FailureKind classifies why a verification attempt failed.
type FailureKind string

const (
	// FailureContent is a verdict from the server: no face, deepfake or no match.
	FailureContent FailureKind = "content"
	// FailureTransport covers network errors, non-2xx statuses and malformed responses.
	FailureTransport FailureKind = "transport"
	// FailureCapture means the camera produced no usable frame.
	FailureCapture FailureKind = "capture"
)

type Outcome string

const (
	OutcomeVerified    Outcome = "verified"
	OutcomeEscalated   Outcome = "escalated"
	OutcomeUnavailable Outcome = "unavailable"
)

const (
	ERR_VERIFICATION_FAILED = "We couldn't verify your identity. Please try again."
	ERR_VERIFICATION_ERROR  = "An error occurred during verification. Please try again."
	ERR_NO_FACE             = "No face was detected in the captured images."
	ERR_DEEPFAKE            = "The captured images could not be confirmed as genuine."
	ERR_NO_MATCH            = "The captured face does not match your records."
	ERR_CAPTURE_FAILED      = "The camera did not capture any images."
	ERR_ESCALATED           = "Automatic verification failed. Connecting you to a live agent."
	ERR_UNAVAILABLE         = "Verification is temporarily unavailable. Please try again later."
)

var (
	// ErrNoImagesCaptured is returned by a capture sequence that produced no frames.
	ErrNoImagesCaptured = errors.New("no images captured")
	// ErrCycleInProgress is returned by Run while another cycle is running.
	ErrCycleInProgress = errors.New("a verification cycle is already running")
)

type Config struct {
	// MaxAttempts is the number of failed attempts after which the session escalates.
	MaxAttempts  int
	CaptureCount int
	PollInterval time.Duration
	// ConfirmDelay is the pause between a positive detection and the first capture.
	ConfirmDelay time.Duration
	CaptureDelay time.Duration

	DetectQuality  float64
	CaptureQuality float64

	// SeparateInfraFailures counts transport and capture failures against
	// MaxInfraFailures instead of MaxAttempts.
	SeparateInfraFailures bool
	MaxInfraFailures      int
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		CaptureCount:     5,
		PollInterval:     2 * time.Second,
		ConfirmDelay:     time.Second,
		CaptureDelay:     time.Second,
		DetectQuality:    0.5,
		CaptureQuality:   0.8,
		MaxInfraFailures: 3,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.CaptureCount <= 0 {
		c.CaptureCount = d.CaptureCount
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	if c.ConfirmDelay < 0 {
		c.ConfirmDelay = 0
	}
	if c.CaptureDelay < 0 {
		c.CaptureDelay = 0
	}
	if c.DetectQuality <= 0 || c.DetectQuality > 1 {
		c.DetectQuality = d.DetectQuality
	}
	if c.CaptureQuality <= 0 || c.CaptureQuality > 1 {
		c.CaptureQuality = d.CaptureQuality
	}
	if c.MaxInfraFailures <= 0 {
		c.MaxInfraFailures = d.MaxInfraFailures
	}
	return c
}

// Snapshot is the observable state of a verification session.
type Snapshot struct {
	SessionId     string
	State         State
	Attempt       int
	InfraFailures int
	Captured      int
	Total         int
	Steps         map[Step]StepStatus
	Message       string
}

func (s Snapshot) clone() Snapshot {
	steps := make(map[Step]StepStatus, len(s.Steps))
	for k, v := range s.Steps {
		steps[k] = v
	}
	s.Steps = steps
	return s
}

func pendingSteps() map[Step]StepStatus {
	steps := make(map[Step]StepStatus, len(allSteps))
	for _, step := range allSteps {
		steps[step] = StatusPending
	}
	return steps
}

type Result struct {
	SessionId string
	Outcome   Outcome
	// Attempts is the number of failed attempts counted against MaxAttempts.
	Attempts      int
	InfraFailures int
	Message       string
	Route         string
}
