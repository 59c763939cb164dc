package identity

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanName trims surrounding whitespace, collapses inner runs of
// whitespace and converts the name to NFC. It returns ErrInvalidName when
// nothing is left.
func CleanName(name string) (string, error) {
	name = norm.NFC.String(name)
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return "", ErrInvalidName
	}
	return name, nil
}
