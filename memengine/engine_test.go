package memengine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/chronos-atlas/chronos"
	"github.com/chronos-atlas/chronos/enginetest"
	"github.com/chronos-atlas/chronos/memengine"
)

func TestEngine(t *testing.T) {
	enginetest.Run(t, memengine.New())
}

func TestEngineHonoursCancellation(t *testing.T) {
	engine := memengine.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := engine.Apply(ctx, func(context.Context, chronos.Tx) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Apply(cancelled) = %v, want %v", err, context.Canceled)
	}
	err = engine.View(ctx, func(context.Context, chronos.Reader) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("View(cancelled) = %v, want %v", err, context.Canceled)
	}
	if called {
		t.Errorf("cancelled engine ran a command or query")
	}
}

// Readers must never observe a bootstrap that is half applied: either the
// project has no root, or it has both a root and a canon.
func TestConcurrentReadersSeeWholeCommands(t *testing.T) {
	ctx := context.Background()
	store := chronos.New(memengine.New())

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				err := store.Engine().View(ctx, func(ctx context.Context, r chronos.Reader) error {
					_, rootErr := r.Root(ctx, "race")
					_, canonErr := r.Canon(ctx, "race")
					if (rootErr == nil) != (canonErr == nil) {
						t.Errorf("observed a partial bootstrap: root error %v, canon error %v", rootErr, canonErr)
					}
					return nil
				})
				if err != nil {
					t.Errorf("View failed: %v", err)
				}
			}
		}()
	}

	if _, err := store.BootstrapProject(ctx, "race", "Race"); err != nil {
		t.Errorf("BootstrapProject failed: %v", err)
	}
	close(stop)
	wg.Wait()
}
