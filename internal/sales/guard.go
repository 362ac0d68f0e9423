package sales

// Authorize allows caller only if it is the recorded owner.
func Authorize(owner, caller ID) error {
	if caller == "" || owner != caller {
		return ErrNotAuthorized
	}
	return nil
}
