package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go-elife-client/models"

	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return New(url, WithRetryMax(0), WithTimeout(5*time.Second))
}

func writeJSON(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	require.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestNew(t *testing.T) {
	client := New("http://localhost:5000/", WithTimeout(7*time.Second), WithRetryMax(4))

	require.Equal(t, "http://localhost:5000", client.BaseURL())
	require.Equal(t, 7*time.Second, client.retry.HTTPClient.Timeout)
	require.Equal(t, 4, client.retry.RetryMax)
}

func TestLogin_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathLogin, r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Empty(t, r.Header.Get("Authorization"))

		var req models.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "1234567890", req.PensionerNumber)
		require.Equal(t, "password123", req.Password)

		writeJSON(t, w, http.StatusOK, map[string]string{"token": "jwt-token"})
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).Login(context.Background(), models.LoginRequest{
		PensionerNumber: "1234567890",
		Password:        "password123",
	})
	require.NoError(t, err)
	require.Equal(t, "jwt-token", resp.Token)
}

func TestLogin_NoTokenCarriesMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusOK, map[string]any{"success": false, "message": "Invalid credentials"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Login(context.Background(), models.LoginRequest{})
	require.Error(t, err)
	require.Equal(t, "Invalid credentials", ServerMessage(err))
}

func TestProfile_SendsBearerToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathProfile, r.URL.Path)
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "Bearer jwt-token", r.Header.Get("Authorization"))

		writeJSON(t, w, http.StatusOK, map[string]any{
			"email":            "alice@example.com",
			"pensioner_number": "1234567890",
			"details": map[string]any{
				"firstname": "ALICE",
				"lastname":  "johnson",
			},
		})
	}))
	defer server.Close()

	profile, err := newTestClient(server.URL).Profile(context.Background(), "jwt-token")
	require.NoError(t, err)
	require.Equal(t, "1234567890", profile.PensionerNumber)
	require.Equal(t, "Alice Johnson", profile.DisplayName())
}

func TestDetectFace_SendsMultipartImage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathDetectFace, r.URL.Path)
		require.Equal(t, "Bearer jwt-token", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		files := r.MultipartForm.File["image"]
		require.Len(t, files, 1)
		require.Equal(t, "face-check.jpg", files[0].Filename)
		require.Equal(t, "image/jpeg", files[0].Header.Get("Content-Type"))

		f, err := files[0].Open()
		require.NoError(t, err)
		data, err := io.ReadAll(f)
		require.NoError(t, err)
		require.Equal(t, []byte("frame-bytes"), data)

		writeJSON(t, w, http.StatusOK, map[string]any{
			"faces": []map[string]int{{"x": 1, "y": 2, "w": 30, "h": 40}},
		})
	}))
	defer server.Close()

	result, err := newTestClient(server.URL).DetectFace(context.Background(), "jwt-token", models.ImageFile{
		Name: "face-check.jpg",
		Data: []byte("frame-bytes"),
	})
	require.NoError(t, err)
	require.Len(t, result.Faces, 1)
	require.Equal(t, 30, result.Faces[0].Width)
}

func TestVerifyImages_SendsAllFrames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathVerifyImages, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Len(t, r.MultipartForm.File["images"], 3)

		writeJSON(t, w, http.StatusOK, map[string]any{
			"success":           false,
			"deepfake_detected": true,
			"match":             true,
		})
	}))
	defer server.Close()

	frames := []models.ImageFile{{Data: []byte("1")}, {Data: []byte("2")}, {Data: []byte("3")}}
	result, err := newTestClient(server.URL).VerifyImages(context.Background(), "jwt-token", frames)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.True(t, result.DeepfakeDetected)
	require.True(t, result.Match)
	require.Nil(t, result.FaceDetected)
}

func TestVerifyImages_NoFrames(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").VerifyImages(context.Background(), "t", nil)
	require.Error(t, err)
}

func TestStatusErrorCarriesServerMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, http.StatusUnauthorized, map[string]string{"message": "Token expired"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Notifications(context.Background(), "old-token")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	require.Equal(t, "Token expired", statusErr.Message)
	require.True(t, IsUnauthorized(err))
}

func TestNonJSONResponseIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>ngrok error</html>"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).VerifyImages(context.Background(), "t", []models.ImageFile{{Data: []byte("x")}})
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestUndecodableJSONIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{not json"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).DashboardSummary(context.Background(), "t")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).DetectFace(context.Background(), "t", models.ImageFile{Data: []byte("x")})
	require.ErrorIs(t, err, ErrTransport)
}

func TestGetRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(t, w, http.StatusServiceUnavailable, map[string]string{"message": "busy"})
			return
		}
		writeJSON(t, w, http.StatusOK, []map[string]any{{"id": 7, "quarter": "Q1-2025"}})
	}))
	defer server.Close()

	client := New(server.URL, WithRetryMax(2), WithRetryWait(time.Millisecond, 5*time.Millisecond))
	history, err := client.VerificationHistory(context.Background(), "t")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, "Q1-2025", history[0].Quarter)
	require.Equal(t, int32(3), calls.Load())
}

func TestPostIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(t, w, http.StatusServiceUnavailable, map[string]string{"message": "busy"})
	}))
	defer server.Close()

	client := New(server.URL, WithRetryMax(3), WithRetryWait(time.Millisecond, 5*time.Millisecond))
	err := client.UpdateAccountStatus(context.Background(), "t", models.AccountStatusRequest{Status: "verified", LifeVerified: true})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, int32(1), calls.Load())
}

func TestUploadId(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, PathVerifyIdUpload, r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Len(t, r.MultipartForm.File["id_image"], 1)
		writeJSON(t, w, http.StatusOK, map[string]string{"next_step": models.NextStepFacialVerification})
	}))
	defer server.Close()

	resp, err := newTestClient(server.URL).UploadId(context.Background(), "t", models.ImageFile{Name: "id.jpg", Data: []byte("id")})
	require.NoError(t, err)
	require.Equal(t, models.NextStepFacialVerification, resp.NextStep)
}

func TestIsJSON(t *testing.T) {
	require.True(t, isJSON("application/json"))
	require.True(t, isJSON("application/json; charset=utf-8"))
	require.True(t, isJSON("application/problem+json"))
	require.False(t, isJSON("text/html"))
	require.False(t, isJSON(""))
}
