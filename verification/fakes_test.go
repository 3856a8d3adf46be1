package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go-elife-client/models"
)

func testConfig() Config {
	return Config{
		MaxAttempts:    3,
		CaptureCount:   5,
		PollInterval:   5 * time.Millisecond,
		ConfirmDelay:   time.Millisecond,
		CaptureDelay:   time.Millisecond,
		DetectQuality:  0.5,
		CaptureQuality: 0.8,
	}
}

// callLog records the order of camera and backend calls and how many run at once.
type callLog struct {
	mutex       sync.Mutex
	calls       []string
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func (l *callLog) enter(name string) func() {
	l.mutex.Lock()
	l.calls = append(l.calls, name)
	l.mutex.Unlock()

	n := l.inflight.Add(1)
	for {
		max := l.maxInflight.Load()
		if n <= max || l.maxInflight.CompareAndSwap(max, n) {
			break
		}
	}
	return func() { l.inflight.Add(-1) }
}

func (l *callLog) snapshot() []string {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeCamera struct {
	log *callLog
	// captureOK decides, per capture-quality call (0-based), whether it succeeds.
	captureOK    func(index int) bool
	mutex        sync.Mutex
	captureIndex int
	detectFrames int
}

func (c *fakeCamera) Capture(ctx context.Context, quality float64) (models.ImageFile, error) {
	if c.log != nil {
		defer c.log.enter("camera")()
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if quality == testConfig().DetectQuality {
		c.detectFrames++
		return models.ImageFile{Name: "detect.jpg", ContentType: "image/jpeg", Data: []byte("detect")}, nil
	}

	index := c.captureIndex
	c.captureIndex++
	if c.captureOK != nil && !c.captureOK(index) {
		return models.ImageFile{}, errors.New("capture failed")
	}
	return models.ImageFile{
		Name:        fmt.Sprintf("frame-%d.jpg", index),
		ContentType: "image/jpeg",
		Data:        []byte("frame"),
	}, nil
}

type verifyResult struct {
	response *models.VerifyImagesResponse
	err      error
}

type fakeBackend struct {
	log *callLog

	mutex         sync.Mutex
	detectResults []verifyDetect
	verifyResults []verifyResult
	detectCalls   int
	verifyCalls   int
	verifyFrames  [][]models.ImageFile
	tokens        []string

	// hooks run inside the call, before the result is returned
	onDetect func(ctx context.Context, call int)
	onVerify func(ctx context.Context, call int)
}

type verifyDetect struct {
	faces int
	err   error
}

func (b *fakeBackend) DetectFace(ctx context.Context, token string, frame models.ImageFile) (*models.DetectFaceResponse, error) {
	if b.log != nil {
		defer b.log.enter("detect")()
	}
	b.mutex.Lock()
	b.detectCalls++
	call := b.detectCalls
	b.tokens = append(b.tokens, token)
	result := verifyDetect{faces: 1}
	if len(b.detectResults) > 0 {
		index := call - 1
		if index >= len(b.detectResults) {
			index = len(b.detectResults) - 1
		}
		result = b.detectResults[index]
	}
	hook := b.onDetect
	b.mutex.Unlock()

	if hook != nil {
		hook(ctx, call)
	}
	if result.err != nil {
		return nil, result.err
	}
	faces := make([]models.FaceBox, result.faces)
	return &models.DetectFaceResponse{Faces: faces}, nil
}

func (b *fakeBackend) VerifyImages(ctx context.Context, token string, frames []models.ImageFile) (*models.VerifyImagesResponse, error) {
	if b.log != nil {
		defer b.log.enter("verify")()
	}
	b.mutex.Lock()
	b.verifyCalls++
	call := b.verifyCalls
	b.verifyFrames = append(b.verifyFrames, frames)
	b.tokens = append(b.tokens, token)
	result := verifyResult{response: passing()}
	if len(b.verifyResults) > 0 {
		index := call - 1
		if index >= len(b.verifyResults) {
			index = len(b.verifyResults) - 1
		}
		result = b.verifyResults[index]
	}
	hook := b.onVerify
	b.mutex.Unlock()

	if hook != nil {
		hook(ctx, call)
	}
	return result.response, result.err
}

func (b *fakeBackend) counts() (detect, verify int) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.detectCalls, b.verifyCalls
}

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token(context.Context) (string, error) {
	return s.token, s.err
}

type recordingNotifier struct {
	mutex       sync.Mutex
	transitions []models.Transition
	// afterCancel counts transitions published once cancelled was set.
	cancelled   atomic.Bool
	afterCancel atomic.Int32
}

func (n *recordingNotifier) Notify(_ context.Context, transition models.Transition) error {
	if n.cancelled.Load() {
		n.afterCancel.Add(1)
	}
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.transitions = append(n.transitions, transition)
	return nil
}

func (n *recordingNotifier) states() []string {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	var states []string
	for _, transition := range n.transitions {
		if len(states) == 0 || states[len(states)-1] != transition.State {
			states = append(states, transition.State)
		}
	}
	return states
}

func (n *recordingNotifier) all() []models.Transition {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	return append([]models.Transition(nil), n.transitions...)
}

func passing() *models.VerifyImagesResponse {
	return &models.VerifyImagesResponse{Success: true, Match: true, Similarity: 0.93}
}

func noMatch() *models.VerifyImagesResponse {
	return &models.VerifyImagesResponse{Success: false, Match: false}
}

func boolPtr(v bool) *bool {
	return &v
}

func newTestOrchestrator(t *testing.T, camera Camera, backend Backend, notifier Notifier, config Config) *Orchestrator {
	t.Helper()
	return NewOrchestrator(camera, backend, staticTokens{token: "test-token"}, notifier, config)
}
