package verification

import (
	"context"
	"errors"
	"log/slog"

	"go-elife-client/api"
	"go-elife-client/models"
)

const (
	ERR_UPLOAD_INVALID_RESPONSE = "Server returned invalid response"
	ERR_UPLOAD_PARTIAL          = "Verification passed partially. Please try again or contact support."
	ERR_UPLOAD_FAILED           = "ID verification failed."
	ERR_UPLOAD_NETWORK          = "Network error. Please check your connection."
)

type IdUploader interface {
	UploadId(ctx context.Context, token string, idImage models.ImageFile) (*models.IdUploadResponse, error)
}

// UploadError is a rejected ID upload. Message is what the user is shown on
// the upload error screen.
type UploadError struct {
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	return e.Message
}

func (e *UploadError) Unwrap() error {
	return e.Err
}

// UploadId submits the identity document and succeeds only when the backend
// asks for the facial verification step next.
func UploadId(ctx context.Context, uploader IdUploader, tokens TokenSource, idImage models.ImageFile) (*models.IdUploadResponse, error) {
	token, err := tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	response, err := uploader.UploadId(ctx, token, idImage)
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err != nil {
		slog.Warn("ID upload failed", "error", err)
		return nil, &UploadError{Message: uploadErrorMessage(err), Err: err}
	}

	if response.NextStep != models.NextStepFacialVerification {
		message := response.Message
		if message == "" {
			message = ERR_UPLOAD_PARTIAL
		}
		slog.Info("ID upload did not unlock facial verification", "next_step", response.NextStep)
		return response, &UploadError{Message: message}
	}

	slog.Info("ID upload accepted", "id_type", response.IdType)
	return response, nil
}

func uploadErrorMessage(err error) string {
	var statusErr *api.StatusError
	switch {
	case errors.As(err, &statusErr):
		if statusErr.Message != "" {
			return statusErr.Message
		}
		return ERR_UPLOAD_FAILED
	case errors.Is(err, api.ErrMalformedResponse):
		return ERR_UPLOAD_INVALID_RESPONSE
	default:
		return ERR_UPLOAD_NETWORK
	}
}
