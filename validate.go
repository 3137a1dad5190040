package lockbox

// validateKey checks key parameters before any serialization or storage work.
// The order is fixed: service, then account, then access group. The access
// group is only checked when the caller supplied one.
func validateKey(service, account, accessGroup string, hasAccessGroup bool) error {
	if service == "" {
		return ErrEmptyService
	}
	if account == "" {
		return ErrEmptyAccount
	}
	if hasAccessGroup && accessGroup == "" {
		return ErrEmptyAccessGroup
	}
	return nil
}

// validateService is the listing-side variant: no account takes part.
func validateService(service, accessGroup string, hasAccessGroup bool) error {
	if service == "" {
		return ErrEmptyService
	}
	if hasAccessGroup && accessGroup == "" {
		return ErrEmptyAccessGroup
	}
	return nil
}
