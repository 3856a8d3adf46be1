package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go-elife-client/models"

	"github.com/hashicorp/go-retryablehttp"
)

const (
	PathLogin                     = "/login"
	PathProfile                   = "/profile"
	PathAcceptTerms               = "/profile/accept-terms"
	PathNotifications             = "/notifications"
	PathVerificationHistory       = "/verification-history"
	PathVerifyIdUpload            = "/verify-id-upload"
	PathDetectFace                = "/detect-face"
	PathVerifyImages              = "/verify-images"
	PathDashboardSummary          = "/api/dashboard-summary"
	PathGenerateCertificate       = "/generate-certificate"
	PathUpdateQuarterVerification = "/update-quarter-verification"
	PathUpdateAccountStatus       = "/update-account-status"
	PathUpdatePermissions         = "/update-permissions"
)

const (
	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 2

	maxErrorBody = 4 << 10
)

// Client is a typed client for the eLife backend.
// Idempotent GET calls are retried on transport errors and 5xx responses; POSTs are sent once.
type Client struct {
	baseURL string
	retry   *retryablehttp.Client
}

// Option configures the client.
type Option func(*Client)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.retry.HTTPClient.Timeout = d }
}

// WithRetryMax sets how many times a failed GET is retried.
func WithRetryMax(n int) Option {
	return func(c *Client) { c.retry.RetryMax = n }
}

// WithRetryWait sets the backoff bounds between GET retries.
func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		c.retry.RetryWaitMin = min
		c.retry.RetryWaitMax = max
	}
}

// New creates a new backend client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	retry := retryablehttp.NewClient()
	retry.HTTPClient = &http.Client{Timeout: defaultTimeout}
	retry.RetryMax = defaultRetryMax
	retry.Logger = slog.Default()
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		retry:   retry,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the backend base URL without trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Login calls POST /login. A response without token is reported as a StatusError.
func (c *Client) Login(ctx context.Context, request models.LoginRequest) (*models.LoginResponse, error) {
	var out models.LoginResponse
	if err := c.postJSON(ctx, PathLogin, "", request, &out); err != nil {
		return nil, err
	}
	if out.Token == "" {
		message := out.Message
		if message == "" {
			message = "login response did not contain a token"
		}
		return nil, &StatusError{StatusCode: http.StatusOK, Message: message}
	}
	return &out, nil
}

// Profile calls GET /profile.
func (c *Client) Profile(ctx context.Context, token string) (*models.Profile, error) {
	var out models.Profile
	if err := c.get(ctx, PathProfile, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AcceptTerms calls POST /profile/accept-terms.
func (c *Client) AcceptTerms(ctx context.Context, token string) error {
	var out models.MessageResponse
	return c.postJSON(ctx, PathAcceptTerms, token, struct{}{}, &out)
}

// Notifications calls GET /notifications.
func (c *Client) Notifications(ctx context.Context, token string) ([]models.Notification, error) {
	var out []models.Notification
	if err := c.get(ctx, PathNotifications, token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// VerificationHistory calls GET /verification-history.
func (c *Client) VerificationHistory(ctx context.Context, token string) ([]models.Certificate, error) {
	var out []models.Certificate
	if err := c.get(ctx, PathVerificationHistory, token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DashboardSummary calls GET /api/dashboard-summary.
func (c *Client) DashboardSummary(ctx context.Context, token string) (*models.DashboardSummary, error) {
	var out models.DashboardSummary
	if err := c.get(ctx, PathDashboardSummary, token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadId calls POST /verify-id-upload with the document image as "id_image".
func (c *Client) UploadId(ctx context.Context, token string, idImage models.ImageFile) (*models.IdUploadResponse, error) {
	var out models.IdUploadResponse
	if err := c.postMultipart(ctx, PathVerifyIdUpload, token, "id_image", []models.ImageFile{idImage}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DetectFace calls POST /detect-face with a single frame as "image".
func (c *Client) DetectFace(ctx context.Context, token string, frame models.ImageFile) (*models.DetectFaceResponse, error) {
	var out models.DetectFaceResponse
	if err := c.postMultipart(ctx, PathDetectFace, token, "image", []models.ImageFile{frame}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyImages calls POST /verify-images with every frame as a repeated "images" part.
func (c *Client) VerifyImages(ctx context.Context, token string, frames []models.ImageFile) (*models.VerifyImagesResponse, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("verify images: no frames to upload")
	}
	var out models.VerifyImagesResponse
	if err := c.postMultipart(ctx, PathVerifyImages, token, "images", frames, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateCertificate calls POST /generate-certificate.
func (c *Client) GenerateCertificate(ctx context.Context, token string, request models.GenerateCertificateRequest) (*models.GenerateCertificateResponse, error) {
	var out models.GenerateCertificateResponse
	if err := c.postJSON(ctx, PathGenerateCertificate, token, request, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateQuarterVerification calls POST /update-quarter-verification.
func (c *Client) UpdateQuarterVerification(ctx context.Context, token string, request models.QuarterVerificationRequest) error {
	var out models.MessageResponse
	return c.postJSON(ctx, PathUpdateQuarterVerification, token, request, &out)
}

// UpdateAccountStatus calls POST /update-account-status.
func (c *Client) UpdateAccountStatus(ctx context.Context, token string, request models.AccountStatusRequest) error {
	var out models.MessageResponse
	return c.postJSON(ctx, PathUpdateAccountStatus, token, request, &out)
}

// UpdatePermissions calls POST /update-permissions.
func (c *Client) UpdatePermissions(ctx context.Context, token string, request models.PermissionsRequest) error {
	var out models.MessageResponse
	return c.postJSON(ctx, PathUpdatePermissions, token, request, &out)
}

// -----------------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path, token string, out any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	setAuth(req.Header, token)
	req.Header.Set("Accept", "application/json")

	slog.Debug("Calling backend", "method", http.MethodGet, "path", path)
	resp, err := c.retry.Do(req)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrTransport, path, err)
	}
	return decodeResponse(resp, path, out)
}

func (c *Client) postJSON(ctx context.Context, path, token string, body any, out any) error {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", path, err)
	}
	return c.post(ctx, path, token, "application/json", bytes.NewReader(jsonData), out)
}

func (c *Client) postMultipart(ctx context.Context, path, token, field string, files []models.ImageFile, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for i, file := range files {
		if err := writeFilePart(writer, field, file, i); err != nil {
			return fmt.Errorf("failed to build multipart body for %s: %w", path, err)
		}
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart body for %s: %w", path, err)
	}
	return c.post(ctx, path, token, writer.FormDataContentType(), &buf, out)
}

func (c *Client) post(ctx context.Context, path, token, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	setAuth(req.Header, token)

	slog.Debug("Calling backend", "method", http.MethodPost, "path", path)
	resp, err := c.retry.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: POST %s: %v", ErrTransport, path, err)
	}
	return decodeResponse(resp, path, out)
}

func writeFilePart(writer *multipart.Writer, field string, file models.ImageFile, index int) error {
	name := file.Name
	if name == "" {
		name = fmt.Sprintf("%s-%d.jpg", field, index)
	}
	contentType := file.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	header.Set("Content-Type", contentType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = part.Write(file.Data)
	return err
}

func setAuth(header http.Header, token string) {
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
}

// decodeResponse closes the body; non-2xx, non-JSON and undecodable bodies are errors.
func decodeResponse(resp *http.Response, path string, out any) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
		var payload models.MessageResponse
		if isJSON(resp.Header.Get("Content-Type")) && json.Unmarshal(body, &payload) == nil {
			statusErr.Message = payload.Message
		}
		slog.Warn("Backend returned error status", "path", path, "status_code", resp.StatusCode, "message", statusErr.Message)
		return statusErr
	}

	contentType := resp.Header.Get("Content-Type")
	if !isJSON(contentType) {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		slog.Warn("Backend returned unexpected content type", "path", path, "content_type", contentType, "body_size", len(body))
		return fmt.Errorf("%w: %s returned content type %q", ErrMalformedResponse, path, contentType)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %v", ErrMalformedResponse, path, err)
	}
	return nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
