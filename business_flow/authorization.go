package businessflow

import "github.com/amirphl/Shiten/models"

// RequireRole allows branch through when its kind satisfies role. It performs no I/O.
func RequireRole(branch *models.Branch, role models.BranchKind) error {
	if branch == nil || !branch.Kind.Satisfies(role) {
		return ErrUnauthorized
	}
	return nil
}

// RequireAdministrator is RequireRole for administrative operations, which only the main branch may perform
func RequireAdministrator(identity *Identity) error {
	if identity == nil || identity.Branch == nil {
		return ErrIdentityRequired
	}
	return RequireRole(identity.Branch, models.BranchKindMain)
}
