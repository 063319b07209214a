package rbac

import "github.com/worklance/backend/internal/models"

// Permission constants
const (
	PermVerifyEscrow     = "verify_escrow"
	PermReviewMilestone  = "review_milestone"
	PermCancelEscrow     = "cancel_escrow"
	PermSubmitMilestone  = "submit_milestone"
	PermClaimMilestone   = "claim_milestone"
	PermSyncMirror       = "sync_mirror"
	PermPlatformWithdraw = "platform_withdraw"
)

// RolePermissions defines what each role can do.
var RolePermissions = map[string][]string{
	models.RoleRecruiter: {
		PermVerifyEscrow, PermReviewMilestone, PermCancelEscrow, PermSyncMirror,
	},
	models.RoleFreelancer: {
		PermSubmitMilestone, PermClaimMilestone, PermSyncMirror,
	},
	models.RoleAdmin: {
		PermVerifyEscrow, PermReviewMilestone, PermCancelEscrow,
		PermSubmitMilestone, PermClaimMilestone, PermSyncMirror,
		PermPlatformWithdraw,
	},
}

// HasPermission checks if a role has a specific permission.
func HasPermission(role, permission string) bool {
	perms, ok := RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if p == permission {
			return true
		}
	}
	return false
}

// IsPlatformOperation reports whether a permission moves platform funds
// (admin-only regardless of grants).
func IsPlatformOperation(permission string) bool {
	return permission == PermPlatformWithdraw
}
