package models

type LoginRequest struct {
	PensionerNumber string `json:"pensioner_number"`
	Password        string `json:"password"`
}

// LoginResponse carries a token on success and a message otherwise.
type LoginResponse struct {
	Token   string `json:"token,omitempty"`
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

type AccountStatusRequest struct {
	Status       string `json:"status"`
	LifeVerified bool   `json:"lifeVerified"`
}

type PermissionsRequest struct {
	CertificateId int      `json:"certificate_id,omitempty"`
	Permissions   []string `json:"permissions"`
}

// MessageResponse is the generic acknowledgement body returned by update endpoints.
type MessageResponse struct {
	Success bool   `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}
