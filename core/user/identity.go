package user

// Identity is the caller context every authorized operation receives.
// The API builds it from the JWT claims; the admin CLI acts as SystemIdentity.
type Identity struct {
	UserID         string
	Roles          []string
	OrganizationID string
}

// SystemIdentity is an admin identity that is not bound to a user.
func SystemIdentity() Identity {
	return Identity{Roles: []string{RoleAdmin}}
}

func (id Identity) HasRole(role string) bool {
	return hasRole(id.Roles, role)
}

func (id Identity) IsAdmin() bool         { return id.HasRole(RoleAdmin) }
func (id Identity) IsKepalaSekolah() bool { return id.HasRole(RoleKepalaSekolah) }
func (id Identity) IsGuru() bool          { return id.HasRole(RoleGuru) }

// HeadsOrganization reports whether id is the school head of orgID.
func (id Identity) HeadsOrganization(orgID string) bool {
	return orgID != "" && id.OrganizationID == orgID && id.IsKepalaSekolah()
}
