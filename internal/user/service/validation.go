package service

import (
	"regexp"

	pkgerrors "codequest/pkg/errors"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]{3,32}$`)

func validateUsername(username string) error {
	if !usernamePattern.MatchString(username) {
		return pkgerrors.New(pkgerrors.InvalidUsername).
			WithMessage("username must be 3-32 characters of letters, digits or underscores")
	}
	return nil
}

func validatePassword(password string) error {
	// bcrypt only hashes the first 72 bytes.
	if len(password) < 6 || len(password) > 72 {
		return pkgerrors.New(pkgerrors.InvalidPassword).
			WithMessage("password must be between 6 and 72 characters")
	}
	return nil
}
