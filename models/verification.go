package models

import "time"

// NextStepFacialVerification is the next_step value that lets the flow continue
// from the ID upload to the facial check.
const NextStepFacialVerification = "facial_verification"

// ImageFile is a single in-memory image part of a multipart upload.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

type IdUploadResponse struct {
	Success  bool   `json:"success,omitempty"`
	NextStep string `json:"next_step,omitempty"`
	Message  string `json:"message,omitempty"`
	IdType   string `json:"id_type,omitempty"` // passport, national_id, driver_license
}

type DetectFaceResponse struct {
	Faces []FaceBox `json:"faces"`
}

type FaceBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"w"`
	Height int `json:"h"`
}

type VerifyImagesResponse struct {
	Success          bool    `json:"success"`
	Message          string  `json:"message,omitempty"`
	FaceDetected     *bool   `json:"face_detected,omitempty"`
	DeepfakeDetected bool    `json:"deepfake_detected"`
	Match            bool    `json:"match"`
	Similarity       float64 `json:"similarity,omitempty"`
}

// Transition is a snapshot of the verification orchestrator published on every state change.
type Transition struct {
	SessionId     string            `json:"session_id"`
	State         string            `json:"state"`
	Attempt       int               `json:"attempt"`
	InfraFailures int               `json:"infra_failures"`
	Captured      int               `json:"captured"`
	Total         int               `json:"total"`
	Steps         map[string]string `json:"steps"`
	Message       string            `json:"message,omitempty"`
	At            time.Time         `json:"at"`
}
