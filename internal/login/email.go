package login

import "regexp"

// Basic syntactic check only; the platform does the real validation.
var emailPattern = regexp.MustCompile(`^[A-Z0-9a-z._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,64}$`)

// ValidEmail reports whether email looks like local@domain.tld.
func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// ValidateEmail returns ErrInvalidEmail when email fails ValidEmail.
func ValidateEmail(email string) error {
	if !ValidEmail(email) {
		return ErrInvalidEmail
	}
	return nil
}
