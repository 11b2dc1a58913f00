package util

import "regexp"

var slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// IsValidHookID checks if the hook ID is a valid slug.
func IsValidHookID(id string) bool {
	return slugRegex.MatchString(id)
}
