package certificate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go-elife-client/models"

	"golang.org/x/sync/errgroup"
)

const (
	StatusCompleted    = "completed"
	AccountVerified    = "verified"
	ERR_NO_CERTIFICATE = "backend returned no certificate"
)

// Permissions granted to a pensioner once the life certificate is issued.
var Permissions = []string{"access_funds", "view_certificate", "trade_assets"}

// ErrInProgress is returned when Generate or ConfirmViewed is called while one is running.
var ErrInProgress = errors.New("certificate operation already in progress")

type Backend interface {
	GenerateCertificate(ctx context.Context, token string, request models.GenerateCertificateRequest) (*models.GenerateCertificateResponse, error)
	UpdateQuarterVerification(ctx context.Context, token string, request models.QuarterVerificationRequest) error
	UpdateAccountStatus(ctx context.Context, token string, request models.AccountStatusRequest) error
	UpdatePermissions(ctx context.Context, token string, request models.PermissionsRequest) error
}

type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Service struct {
	backend Backend
	tokens  TokenSource
	now     func() time.Time
	busy    atomic.Bool
}

func NewService(backend Backend, tokens TokenSource) *Service {
	return &Service{
		backend: backend,
		tokens:  tokens,
		now:     time.Now,
	}
}

// Generate requests the certificate for the current quarter. The follow-up
// quarter and permission updates are best effort.
func (s *Service) Generate(ctx context.Context) (*models.Certificate, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrInProgress
	}
	defer s.busy.Store(false)

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	quarter := Quarter(s.now())
	response, err := s.backend.GenerateCertificate(ctx, token, models.GenerateCertificateRequest{Quarter: quarter})
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate: %w", err)
	}
	if response.Certificate.Id == 0 {
		return nil, errors.New(ERR_NO_CERTIFICATE)
	}
	certificate := response.Certificate
	slog.Info("Life certificate generated", "certificate_id", certificate.Id, "quarter", quarter)

	err = s.backend.UpdateQuarterVerification(ctx, token, models.QuarterVerificationRequest{
		Quarter:           quarter,
		Status:            StatusCompleted,
		ProofSubmissionId: certificate.ProofSubmissionId,
	})
	if err != nil {
		slog.Warn("Failed to update quarter verification, continuing", "quarter", quarter, "error", err)
	}

	err = s.backend.UpdatePermissions(ctx, token, models.PermissionsRequest{
		CertificateId: certificate.Id,
		Permissions:   Permissions,
	})
	if err != nil {
		slog.Warn("Failed to update permissions, continuing", "certificate_id", certificate.Id, "error", err)
	}

	return &certificate, nil
}

// ConfirmViewed marks the account as life-verified once the pensioner has
// seen the certificate. Both updates run in parallel and both must succeed.
func (s *Service) ConfirmViewed(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrInProgress
	}
	defer s.busy.Store(false)

	token, err := s.tokens.Token(ctx)
	if err != nil {
		return err
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := s.backend.UpdateAccountStatus(groupCtx, token, models.AccountStatusRequest{
			Status:       AccountVerified,
			LifeVerified: true,
		})
		if err != nil {
			return fmt.Errorf("failed to update account status: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		err := s.backend.UpdatePermissions(groupCtx, token, models.PermissionsRequest{Permissions: Permissions})
		if err != nil {
			return fmt.Errorf("failed to update permissions: %w", err)
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		slog.Error("Failed to record certificate view", "error", err)
		return err
	}
	slog.Info("Life verification recorded")
	return nil
}
