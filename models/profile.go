package models

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type Profile struct {
	Id              int            `json:"id"`
	Username        string         `json:"username"`
	Email           string         `json:"email"`
	PensionerNumber string         `json:"pensioner_number"`
	TermsAccepted   bool           `json:"terms_accepted"`
	Details         ProfileDetails `json:"details"`
}

type ProfileDetails struct {
	FirstName  string `json:"firstname"`
	LastName   string `json:"lastname"`
	DOB        string `json:"dob,omitempty"`
	TRN        string `json:"trn,omitempty"` // Tax Registration Number
	ContactNum string `json:"contact_num,omitempty"`
	Address    string `json:"address,omitempty"`
}

// DisplayName returns "Firstname Lastname" in title case, falling back to the username.
func (p Profile) DisplayName() string {
	name := strings.TrimSpace(p.Details.FirstName + " " + p.Details.LastName)
	if name == "" {
		name = p.Username
	}
	return cases.Title(language.English).String(strings.ToLower(name))
}

type Notification struct {
	Id            int    `json:"id"`
	Type          string `json:"type"` // reminder, approval, rejection, update, alert
	Title         string `json:"title,omitempty"`
	Message       string `json:"message"`
	TargetQuarter string `json:"target_quarter,omitempty"`
	SentAt        string `json:"sent_at,omitempty"`
	IsRead        bool   `json:"is_read"`
}
