package permissions

// Permission names the out-of-scope auth layer grants to actors. The core
// only checks membership of the set handed to it.
const (
	EditBeneficiaryProfile = "edit_beneficiary_profile"
	ReviewProfileUpdate    = "review_profile_update"
	ApproveProfileUpdate   = "approve_profile_update"
)
