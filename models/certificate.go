package models

import "github.com/shopspring/decimal"

type GenerateCertificateRequest struct {
	Quarter string `json:"quarter"`
}

type GenerateCertificateResponse struct {
	Message     string      `json:"message,omitempty"`
	Certificate Certificate `json:"certificate"`
}

type Certificate struct {
	Id                   int    `json:"id"`
	ProofSubmissionId    int    `json:"proof_submission_id"`
	Quarter              string `json:"quarter"`
	CertificateFilename  string `json:"certificate_filename,omitempty"`
	Timestamp            string `json:"timestamp,omitempty"`
	DigitalSignatureHash string `json:"digital_signature_hash,omitempty"`
}

type QuarterVerificationRequest struct {
	Quarter           string `json:"quarter"`
	Status            string `json:"status"`
	ProofSubmissionId int    `json:"proof_submission_id"`
}

type DashboardSummary struct {
	PensionerName       string          `json:"pensioner_name"`
	CurrentQuarter      string          `json:"current_quarter"`
	QuarterStatus       string          `json:"quarter_status"` // pending, completed, missed
	DueDate             string          `json:"due_date,omitempty"`
	PensionAmount       decimal.Decimal `json:"pension_amount"`
	UnreadNotifications int             `json:"unread_notifications"`
	Certificates        []Certificate   `json:"certificates,omitempty"`
}
