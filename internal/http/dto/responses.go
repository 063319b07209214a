package dto

type AuthResponse struct {
	Token string `json:"token"`
	User  any    `json:"user"`
}

type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type SuccessResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data,omitempty"`
}

type DeriveEscrowResponse struct {
	EscrowAddress string `json:"escrow_address"`
	Bump          uint8  `json:"bump"`
}

type SyncResponse struct {
	Status         string   `json:"status"`
	UpdatesApplied []string `json:"updates_applied,omitempty"`
}

type PlatformWithdrawResponse struct {
	Signature string `json:"signature"`
}
