package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go-elife-client/api"
	"go-elife-client/models"
	"go-elife-client/verification"
)

type ProfileSource interface {
	Profile(ctx context.Context, token string) (*models.Profile, error)
}

type CertificateIssuer interface {
	Generate(ctx context.Context) (*models.Certificate, error)
	ConfirmViewed(ctx context.Context) error
}

type VerificationRunner interface {
	Run(ctx context.Context) (*verification.Result, error)
}

// ProofOfLifeFlow is the complete pensioner journey: ID upload, countdown,
// facial verification and then either certificate issuance or hand-off to a
// live agent.
type ProofOfLifeFlow struct {
	Tokens       verification.TokenSource
	Uploader     verification.IdUploader
	Verification VerificationRunner
	Certificates CertificateIssuer
	Profiles     ProfileSource

	CountdownSeconds int
	CountdownTick    time.Duration
	OnCountdown      func(remaining int)
}

type FlowResult struct {
	Route       string
	Outcome     verification.Outcome
	Message     string
	Certificate *models.Certificate
	// Verification is nil when the flow stopped at the ID upload.
	Verification *verification.Result
}

func (f *ProofOfLifeFlow) Run(ctx context.Context, idImage models.ImageFile) (*FlowResult, error) {
	_, err := verification.UploadId(ctx, f.Uploader, f.Tokens, idImage)
	var uploadErr *verification.UploadError
	if errors.As(err, &uploadErr) {
		return &FlowResult{Route: verification.RouteUploadError, Message: uploadErr.Message}, nil
	}
	if err != nil {
		return nil, err
	}

	tick := f.CountdownTick
	if tick <= 0 {
		tick = time.Second
	}
	if err := verification.Countdown(ctx, f.CountdownSeconds, tick, f.OnCountdown); err != nil {
		return nil, err
	}

	result, err := f.Verification.Run(ctx)
	if err != nil {
		return nil, err
	}

	flowResult := &FlowResult{
		Route:        result.Route,
		Outcome:      result.Outcome,
		Message:      result.Message,
		Verification: result,
	}

	switch result.Outcome {
	case verification.OutcomeVerified:
		issued, err := f.Certificates.Generate(ctx)
		if err != nil {
			return nil, fmt.Errorf("verification succeeded but the certificate could not be issued: %w", err)
		}
		flowResult.Certificate = issued
		if err := f.Certificates.ConfirmViewed(ctx); err != nil {
			return nil, err
		}
	case verification.OutcomeEscalated:
		flowResult.Message = f.liveAgentGreeting(ctx)
	}
	return flowResult, nil
}

func (f *ProofOfLifeFlow) liveAgentGreeting(ctx context.Context) string {
	name := "there"
	token, err := f.Tokens.Token(ctx)
	if err == nil {
		profile, err := f.Profiles.Profile(ctx, token)
		if err == nil {
			name = profile.DisplayName()
		} else {
			slog.Warn("Failed to load profile for live agent", "error", err, "message", api.ServerMessage(err))
		}
	}
	return fmt.Sprintf("Hi %s, automatic verification did not succeed. A live agent will verify you by video call.", name)
}
