package dbtest

import (
	"os"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/log"
)

// imageFromEnv returns the image named by the environment variable, or the
// fallback when the variable is unset.
func imageFromEnv(variable, fallback string) string {
	if image := os.Getenv(variable); image != "" {
		return image
	}
	return fallback
}

// containerOptions prefixes opts with a logger that writes to tb.
func containerOptions(tb testing.TB, opts ...testcontainers.ContainerCustomizer) []testcontainers.ContainerCustomizer {
	customizers := make([]testcontainers.ContainerCustomizer, 0, len(opts)+1)
	customizers = append(customizers, testcontainers.WithLogger(log.TestLogger(tb)))
	return append(customizers, opts...)
}
