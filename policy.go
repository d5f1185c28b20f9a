package tenure

// requiredToGrant is the tier an actor must hold to grant t. Only
// SuperAdmins may create SuperAdmins or Admins.
func requiredToGrant(t Tier) Tier {
	if t == TierModerator {
		return TierAdmin
	}
	return TierSuperAdmin
}

// requiredToRevoke is the tier an actor must hold to revoke a grant of t.
func requiredToRevoke(t Tier) Tier {
	if t == TierSuperAdmin {
		return TierSuperAdmin
	}
	return TierAdmin
}
