package domain

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

// RequireAdmin gates administrative operations.
func RequireAdmin(p *Principal) error {
	if p == nil {
		return ErrUnauthenticated
	}
	if !p.IsAdmin {
		return ErrForbidden
	}
	return nil
}
