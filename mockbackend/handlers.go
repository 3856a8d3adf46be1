package mockbackend

import (
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"go-elife-client/certificate"
	"go-elife-client/images"
	"go-elife-client/models"
)

func (s *ServerState) handleLogin(w http.ResponseWriter, r *http.Request) {
	defer closeRequestBody(r)

	var request models.LoginRequest
	if err := decodeJSON(r, &request); err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_BAD_REQUEST, "failed to decode login request", err)
		return
	}

	user, ok := s.authenticate(request.PensionerNumber, request.Password)
	if !ok {
		respondWithErr(w, http.StatusUnauthorized, ERR_INVALID_CREDENTIALS, "login rejected", nil)
		return
	}

	token, err := s.jwtCreator.CreateToken(user.Profile.Id)
	if err != nil {
		respondWithErr(w, http.StatusInternalServerError, "Failed to create token", "failed to create jwt", err)
		return
	}

	slog.Info("Pensioner logged in", "user_id", user.Profile.Id)
	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token, Success: true, Message: "Login successful"})
}

func handleProfile(s *ServerState, userId int, w http.ResponseWriter, r *http.Request) {
	user, _ := s.User(userId)
	writeJSON(w, http.StatusOK, user.Profile)
}

func handleAcceptTerms(s *ServerState, userId int, w http.ResponseWriter, r *http.Request) {
	s.withUser(userId, func(user *User) {
		user.Profile.TermsAccepted = true
	})
	respondOK(w, "Terms accepted")
}

func handleNotifications(s *ServerState, userId int, w http.ResponseWriter, r *http.Request) {
	user, _ := s.User(userId)
	notifications := user.Notifications
	if notifications == nil {
		notifications = []models.Notification{}
	}
	writeJSON(w, http.StatusOK, notifications)
}

func handleVerificationHistory(s *ServerState, userId int, w http.ResponseWriter, r *http.Request) {
	user, _ := s.User(userId)
	history := user.Certificates
	if history == nil {
		history = []models.Certificate{}
	}
	writeJSON(w, http.StatusOK, history)
}

func handleDashboardSummary(s *ServerState, userId int, w http.ResponseWriter, r *http.Request) {
	user, _ := s.User(userId)
	now := s.now()
	quarter := certificate.Quarter(now)
	q, year, _ := certificate.ParseQuarter(quarter)

	status := user.QuarterStatus[quarter]
	if status == "" {
		status = "pending"
	}
	unread := 0
	for _, notification := range user.Notifications {
		if !notification.IsRead {
			unread++
		}
	}

	writeJSON(w, http.StatusOK, models.DashboardSummary{
		PensionerName:       user.Profile.DisplayName(),
		CurrentQuarter:      quarter,
		QuarterStatus:       status,
		DueDate:             certificate.QuarterDueDate(q, year).Format("2006-01-02"),
		PensionAmount:       user.PensionAmount,
		UnreadNotifications: unread,
		Certificates:        user.Certificates,
	})
}

func handleIdUpload(s *ServerState, userId int, w http.ResponseWriter, r *http.Request) {
	files, err := readImages(r, "id_image")
	if err != nil || len(files) == 0 {
		respondWithErr(w, http.StatusBadRequest, "No ID image provided", "id upload without image", err)
		return
	}
	if _, err := images.Decode(files[0]); err != nil {
		respondWithErr(w, http.StatusBadRequest, "Uploaded file is not a readable image", "id upload with invalid image", err)
		return
	}

	s.mutex.Lock()
	scripted := s.idUpload
	s.mutex.Unlock()

	response := models.IdUploadResponse{
		Success:  true,
		NextStep: models.NextStepFacialVerification,
		Message:  "ID verified",
		IdType:   "national_id",
	}
	if scripted != nil {
		response = *scripted
	}
	if response.NextStep == models.NextStepFacialVerification {
		s.withUser(userId, func(user *User) { user.IdVerified = true })
	}
	writeJSON(w, http.StatusOK, response)
}

func handleDetectFace(s *ServerState, userId int, w http.ResponseWriter, r *http.Request) {
	files, err := readImages(r, "image")
	if err != nil || len(files) == 0 {
		respondWithErr(w, http.StatusBadRequest, "No image provided", "detect-face without image", err)
		return
	}

	faces := make([]models.FaceBox, s.nextDetect())
	for i := range faces {
		faces[i] = models.FaceBox{X: 40 + i*10, Y: 60, Width: 120, Height: 120}
	}
	writeJSON(w, http.StatusOK, models.DetectFaceResponse{Faces: faces})
}

func handleVerifyImages(s *ServerState, userId int, w http.ResponseWriter, r *http.Request) {
	files, err := readImages(r, "images")
	if err != nil || len(files) == 0 {
		respondWithErr(w, http.StatusBadRequest, "No images provided", "verify-images without images", err)
		return
	}

	answer := s.nextVerify()
	if answer.Raw != "" {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(statusOr(answer.Status, http.StatusOK))
		if _, err := io.WriteString(w, answer.Raw); err != nil {
			slog.Error("failed to write body to http response", "error", err)
		}
		return
	}

	if status := statusOr(answer.Status, http.StatusOK); status != http.StatusOK {
		respondWithErr(w, status, answer.Response.Message, "scripted verify-images failure", nil)
		return
	}

	if answer.Response.Success {
		proofId := s.recordProof(userId)
		slog.Info("Proof of life approved", "user_id", userId, "proof_submission_id", proofId, "images", len(files))
	}
	writeJSON(w, http.StatusOK, answer.Response)
}

func handleGenerateCertificate(s *ServerState, userId int, w http.ResponseWriter, r *http.Request) {
	var request models.GenerateCertificateRequest
	if err := decodeJSON(r, &request); err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_BAD_REQUEST, "failed to decode certificate request", err)
		return
	}
	if _, _, err := certificate.ParseQuarter(request.Quarter); err != nil {
		respondWithErr(w, http.StatusBadRequest, "Invalid quarter", "certificate request with invalid quarter", err)
		return
	}

	issued, ok := s.issueCertificate(userId, request.Quarter)
	if !ok {
		respondWithErr(w, http.StatusBadRequest, "No approved proof submission found", "certificate requested without approved proof", nil)
		return
	}

	slog.Info("Certificate issued", "user_id", userId, "certificate_id", issued.Id, "quarter", request.Quarter)
	writeJSON(w, http.StatusCreated, models.GenerateCertificateResponse{
		Message:     "Certificate generated successfully",
		Certificate: issued,
	})
}

func handleQuarterVerification(s *ServerState, userId int, w http.ResponseWriter, r *http.Request) {
	var request models.QuarterVerificationRequest
	if err := decodeJSON(r, &request); err != nil || request.Quarter == "" {
		respondWithErr(w, http.StatusBadRequest, ERR_BAD_REQUEST, "failed to decode quarter verification", err)
		return
	}
	s.withUser(userId, func(user *User) {
		user.QuarterStatus[request.Quarter] = request.Status
	})
	respondOK(w, "Quarter verification updated")
}

func handleAccountStatus(s *ServerState, userId int, w http.ResponseWriter, r *http.Request) {
	var request models.AccountStatusRequest
	if err := decodeJSON(r, &request); err != nil || request.Status == "" {
		respondWithErr(w, http.StatusBadRequest, ERR_BAD_REQUEST, "failed to decode account status", err)
		return
	}
	s.withUser(userId, func(user *User) {
		user.AccountStatus = request.Status
		user.LifeVerified = request.LifeVerified
	})
	respondOK(w, "Account status updated")
}

func handlePermissions(s *ServerState, userId int, w http.ResponseWriter, r *http.Request) {
	var request models.PermissionsRequest
	if err := decodeJSON(r, &request); err != nil {
		respondWithErr(w, http.StatusBadRequest, ERR_BAD_REQUEST, "failed to decode permissions", err)
		return
	}
	s.withUser(userId, func(user *User) {
		user.Permissions = append([]string(nil), request.Permissions...)
		if request.CertificateId != 0 {
			user.PermissionCertId = request.CertificateId
		}
	})
	respondOK(w, "Permissions updated")
}

// readImages returns the contents of every file part named field.
func readImages(r *http.Request, field string) ([][]byte, error) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		return nil, fmt.Errorf("failed to parse multipart form: %w", err)
	}
	var out [][]byte
	for _, header := range r.MultipartForm.File[field] {
		data, err := readPart(header)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open part %s: %w", header.Filename, err)
	}
	defer file.Close()
	return io.ReadAll(file)
}

func statusOr(status, fallback int) int {
	if status == 0 {
		return fallback
	}
	return status
}
