// Package secret resolves deploy-time credentials from the environment so
// they never have to live in checked-in configuration files.
package secret

import "os"

// GetEnv returns the value of the environment variable named by the key,
// or fallback if the variable is not present.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// Feedback archive connection string.
func FeedbackDSN() string {
	return GetEnv("MATHROUTER_FEEDBACK_DSN", "")
}

// Trail archive object storage credentials.
func ArchiveAccessKey() string {
	return GetEnv("MATHROUTER_ARCHIVE_ACCESS_KEY", "")
}

func ArchiveSecretKey() string {
	return GetEnv("MATHROUTER_ARCHIVE_SECRET_KEY", "")
}
