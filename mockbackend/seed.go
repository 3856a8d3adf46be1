package mockbackend

import (
	"go-elife-client/models"

	"github.com/shopspring/decimal"
)

const (
	DemoPensionerNumber = "123-456-7890"
	DemoPassword        = "password123"
)

// SeedDemo adds the demo pensioner used by serve-mock and the end-to-end tests.
func SeedDemo(state *ServerState) (*User, error) {
	user, err := state.AddUser(models.Profile{
		Username:        "ajohnson",
		Email:           "alice.johnson@example.com",
		PensionerNumber: DemoPensionerNumber,
		Details: models.ProfileDetails{
			FirstName:  "ALICE",
			LastName:   "johnson",
			DOB:        "1952-03-14",
			TRN:        "123456789",
			ContactNum: "876-555-0100",
			Address:    "12 Hope Road, Kingston",
		},
	}, DemoPassword, decimal.RequireFromString("45250.75"))
	if err != nil {
		return nil, err
	}

	state.AddNotification(user.Profile.Id, models.Notification{
		Type:    "reminder",
		Title:   "Proof of life due",
		Message: "Please complete your quarterly proof of life.",
	})
	state.AddNotification(user.Profile.Id, models.Notification{
		Type:    "update",
		Title:   "Welcome",
		Message: "Your eLife account is ready.",
		IsRead:  true,
	})
	return user, nil
}
