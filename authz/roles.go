package authz

// permissionsFromRoles returns the union of Granted over all roles whose
// members contain the subject. Anonymous subjects hold no roles; membership
// is exact, there are no partial matches.
func permissionsFromRoles(roles []Role, sub Subject) CodeSet {
	perms := make(CodeSet)
	if sub.Anonymous {
		return perms
	}
	for _, r := range roles {
		if !r.IsGrantedTo(sub.ID) {
			continue
		}
		for _, c := range r.Granted {
			perms.Add(c)
		}
	}
	return perms
}
