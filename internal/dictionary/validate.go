package dictionary

import (
	"fmt"
	"regexp"
)

// MaxIDLength bounds job identifiers, which double as artifact keys.
const MaxIDLength = 128

var validID = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateID rejects identifiers that cannot be used safely as artifact keys.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: dict_name is required", ErrInvalidArgument)
	case len(id) > MaxIDLength:
		return fmt.Errorf("%w: dict_name longer than %d characters", ErrInvalidArgument, MaxIDLength)
	case id == "." || id == "..":
		return fmt.Errorf("%w: dict_name %q is reserved", ErrInvalidArgument, id)
	case !validID.MatchString(id):
		return fmt.Errorf("%w: dict_name may only contain letters, digits, '.', '_' and '-'", ErrInvalidArgument)
	}
	return nil
}
