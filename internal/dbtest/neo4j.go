package dbtest

import (
	"context"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	neo4jtest "github.com/testcontainers/testcontainers-go/modules/neo4j"
)

// Neo4jImage is the image of the Neo4j container, unless overridden by the
// CHRONOS_NEO4J_IMAGE environment variable.
//
// The enterprise variant is required for neo4jengine.BootstrapDatabase, which
// creates databases.
//
// See <https://hub.docker.com/_/neo4j> for more images.
const Neo4jImage = "docker.io/neo4j:5-enterprise"

// ImageEnv names the environment variable that overrides Neo4jImage.
const ImageEnv = "CHRONOS_NEO4J_IMAGE"

// Port of the transactional HTTP endpoint, which also serves the browser:
// <https://neo4j.com/docs/http-api/current>
const neo4jHTTP = nat.Port("7474/tcp")

// SetupNeo4j spins up a Neo4j container and returns a driver connected to it.
// The driver is closed, and the container terminated, during cleanup of t.
//
// The test is skipped in short mode and otherwise marked as parallel.
func SetupNeo4j(t *testing.T) neo4j.DriverWithContext {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping container-based test in short mode...")
	}
	t.Parallel()

	ctx := context.Background()

	image := imageFromEnv(ImageEnv, Neo4jImage)
	container, err := neo4jtest.Run(ctx, image, containerOptions(t,
		neo4jtest.WithoutAuthentication(),
		neo4jtest.WithAcceptCommercialLicenseAgreement(),
	)...)
	if err != nil {
		t.Fatalf("Failed to run %v container: %v", image, err)
	}
	t.Cleanup(func() {
		t.Logf("Terminating neo4j container %q...", container.GetContainerID())
		if err := container.Terminate(ctx); err != nil {
			t.Error("Encountered an error during cleanup; terminate container:", err)
		}
	})

	boltURL, err := container.BoltUrl(ctx)
	if err != nil {
		t.Fatal("Failed to get bolt url:", err)
	}
	httpEndpoint, err := container.PortEndpoint(ctx, neo4jHTTP, "http")
	if err != nil {
		t.Fatal("Failed to get http endpoint:", err)
	}

	driver, err := neo4j.NewDriverWithContext(boltURL, neo4j.NoAuth())
	if err != nil {
		t.Fatal("Failed to open neo4j driver:", err)
	}
	t.Cleanup(func() {
		if err := driver.Close(ctx); err != nil {
			t.Error("Encountered an error during cleanup while closing the neo4j driver:", err)
		}
	})

	if err := verifyConnectivity(t, ctx, driver); err != nil {
		t.Fatalf("Failed to establish a connection with the neo4j server: %v", err)
	}

	// Registered last so that it runs before the container is terminated.
	t.Cleanup(func() {
		if t.Failed() && *Inspect {
			t.Logf("Container %v is still running for inspection (Ctrl+C to terminate)...", container.GetContainerID())
			t.Logf("HTTP URL = %s/browser?preselectAuthMethod=%s&dbms=%s", httpEndpoint, url.QueryEscape("[NO_AUTH]"), url.QueryEscape(boltURL))
			waitForInspection()
		}
	})

	return driver
}

// verifyConnectivity retries a few times, since the container may report
// readiness before the server accepts bolt connections.
func verifyConnectivity(t *testing.T, ctx context.Context, driver neo4j.DriverWithContext) error {
	t.Helper()

	const attempts = 6
	const pause = 250 * time.Millisecond

	var err error
	for attempt := range attempts {
		if attempt > 0 {
			t.Logf("Retrying [%d/%d] neo4j connectivity after: %v", attempt, attempts-1, err)
			select {
			case <-time.After(pause):
			case <-ctx.Done():
				return fmt.Errorf("retry pause interrupted: %w", ctx.Err())
			}
		}
		if err = driver.VerifyConnectivity(ctx); err == nil {
			return nil
		}
	}
	return err
}
