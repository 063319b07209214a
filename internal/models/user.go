package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles
const (
	RoleRecruiter  = "recruiter"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// User is identified by a verified wallet. Role is picked at first sign-in;
// admin is granted manually.
type User struct {
	ID            uuid.UUID `json:"id"`
	WalletAddress string    `json:"wallet_address"`
	Role          string    `json:"role"`
	DisplayName   *string   `json:"display_name,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastActiveAt  time.Time `json:"last_active_at"`
}
