package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/shared"
	tu "github.com/desertthunder/earbump/internal/testing"
)

func newTestCoordinator(t *testing.T, network *tu.FakeNetwork) *Coordinator {
	t.Helper()
	c := NewCoordinator(network, Options{
		PollInterval: 2 * time.Millisecond,
		StallTimeout: 10 * time.Millisecond,
		RefetchDelay: time.Millisecond,
		Logger:       shared.NewLogger(io.Discard),
	})
	t.Cleanup(c.Close)
	return c
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCoordinator(t *testing.T) {
	meta := models.DownloadMetadata{Title: "Test Song", Author: "alice"}

	t.Run("RequestDownload", func(t *testing.T) {
		t.Run("Rejects Empty Identifier", func(t *testing.T) {
			c := newTestCoordinator(t, tu.NewFakeNetwork())
			err := c.RequestDownload(context.Background(), models.ResourceRef{Name: "alice"}, meta)
			if !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})

		t.Run("Creates Record And Reaches Ready", func(t *testing.T) {
			network := tu.NewFakeNetwork()
			network.SetStatuses(testRef.Identifier, tu.Percent(10), tu.Percent(70), tu.Ready())
			c := newTestCoordinator(t, network)

			if err := c.RequestDownload(context.Background(), testRef, meta); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			rec, ok := c.Record(testRef.Identifier)
			if !ok {
				t.Fatal("expected record to exist synchronously")
			}
			if rec.Title != "Test Song" || rec.Author != "alice" {
				t.Errorf("unexpected metadata %+v", rec)
			}

			rec, err := c.Wait(waitCtx(t), testRef.Identifier)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rec.Status != models.DownloadReady {
				t.Errorf("expected READY, got %s", rec.Status)
			}
			if rec.PercentLoaded != 100 {
				t.Errorf("expected 100%%, got %v", rec.PercentLoaded)
			}
			waitFor(t, func() bool {
				r, _ := c.Record(testRef.Identifier)
				return r.URL != ""
			})
		})

		t.Run("Is Idempotent", func(t *testing.T) {
			network := tu.NewFakeNetwork()
			network.SetStatuses(testRef.Identifier, tu.Percent(10), tu.Ready())
			c := newTestCoordinator(t, network)

			var (
				mu        sync.Mutex
				requested int
			)
			c.SetUpdateCallback(func(rec models.DownloadRecord) {
				mu.Lock()
				defer mu.Unlock()
				if rec.Status == models.DownloadRequested {
					requested++
				}
			})

			for i := 0; i < 3; i++ {
				if err := c.RequestDownload(context.Background(), testRef, meta); err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
			}
			if _, err := c.Wait(waitCtx(t), testRef.Identifier); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			mu.Lock()
			defer mu.Unlock()
			if requested != 1 {
				t.Errorf("expected a single record creation, got %d", requested)
			}
			if len(c.Records()) != 1 {
				t.Errorf("expected 1 record, got %d", len(c.Records()))
			}
		})

		t.Run("Ready Record Is A Cache Hit", func(t *testing.T) {
			network := tu.NewFakeNetwork()
			network.SetStatuses(testRef.Identifier, tu.Ready())
			c := newTestCoordinator(t, network)

			c.RequestDownload(context.Background(), testRef, meta)
			if _, err := c.Wait(waitCtx(t), testRef.Identifier); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			waitFor(t, func() bool { return !c.Active(testRef.Identifier) })

			calls := network.StatusCalls(testRef.Identifier)
			c.RequestDownload(context.Background(), testRef, meta)
			time.Sleep(10 * time.Millisecond)

			if got := network.StatusCalls(testRef.Identifier); got != calls {
				t.Errorf("expected no further status calls, got %d more", got-calls)
			}
		})
	})

	t.Run("Percent Is Monotonic", func(t *testing.T) {
		network := tu.NewFakeNetwork()
		network.SetStatuses(testRef.Identifier, tu.Percent(30), tu.Percent(20))
		c := newTestCoordinator(t, network)

		c.RequestDownload(context.Background(), testRef, meta)
		waitFor(t, func() bool { return network.StatusCalls(testRef.Identifier) >= 3 })

		rec, _ := c.Record(testRef.Identifier)
		if rec.PercentLoaded != 30 {
			t.Errorf("expected percent to stay at 30, got %v", rec.PercentLoaded)
		}
	})

	t.Run("Stall Nudges The Node", func(t *testing.T) {
		network := tu.NewFakeNetwork()
		network.SetStatuses(testRef.Identifier, tu.Percent(40))
		c := newTestCoordinator(t, network)

		var (
			mu      sync.Mutex
			stalled bool
		)
		c.SetUpdateCallback(func(rec models.DownloadRecord) {
			mu.Lock()
			defer mu.Unlock()
			if rec.Status == models.DownloadStalledRefetching {
				stalled = true
			}
		})

		c.RequestDownload(context.Background(), testRef, meta)
		waitFor(t, func() bool { return network.PropertiesCalls(testRef.Identifier) >= 1 })

		mu.Lock()
		defer mu.Unlock()
		if !stalled {
			t.Error("expected record to pass through STALLED_REFETCHING")
		}
	})

	t.Run("Abandon", func(t *testing.T) {
		network := tu.NewFakeNetwork()
		network.SetStatuses(testRef.Identifier, tu.Percent(5))
		c := newTestCoordinator(t, network)

		c.RequestDownload(context.Background(), testRef, meta)
		waitFor(t, func() bool { return network.StatusCalls(testRef.Identifier) >= 1 })

		if err := c.Abandon(testRef.Identifier); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if c.Active(testRef.Identifier) {
			t.Error("expected poller to be stopped")
		}

		_, err := c.Wait(waitCtx(t), testRef.Identifier)
		if !errors.Is(err, shared.ErrAbandoned) {
			t.Errorf("expected ErrAbandoned, got %v", err)
		}

		time.Sleep(5 * time.Millisecond)
		calls := network.StatusCalls(testRef.Identifier)
		time.Sleep(10 * time.Millisecond)
		if got := network.StatusCalls(testRef.Identifier); got != calls {
			t.Errorf("expected polling to stop, got %d more calls", got-calls)
		}

		t.Run("Request Restarts Failed Record", func(t *testing.T) {
			network.SetStatuses(testRef.Identifier, tu.Ready())
			if err := c.RequestDownload(context.Background(), testRef, meta); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			rec, err := c.Wait(waitCtx(t), testRef.Identifier)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rec.Error != "" {
				t.Errorf("expected error to be cleared, got %q", rec.Error)
			}
		})

		t.Run("Unknown Identifier", func(t *testing.T) {
			if err := c.Abandon("missing"); !errors.Is(err, shared.ErrResourceNotFound) {
				t.Errorf("expected ErrResourceNotFound, got %v", err)
			}
		})
	})

	t.Run("Not Yet Published Resource Keeps Resolving", func(t *testing.T) {
		network := tu.NewFakeNetwork()
		network.URLErr = shared.ErrResourceNotFound
		network.SetStatuses(testRef.Identifier,
			models.ResourceStatus{Status: models.NodeStatusNotPublished},
			tu.Percent(10),
			tu.Ready(),
		)
		c := newTestCoordinator(t, network)

		c.RequestDownload(context.Background(), testRef, meta)
		waitFor(t, func() bool {
			rec, _ := c.Record(testRef.Identifier)
			return rec.Status == models.DownloadReady
		})
		if !c.Active(testRef.Identifier) {
			t.Error("expected URL resolution to continue after READY")
		}

		network.SetURLErr(nil)
		rec, err := c.Wait(waitCtx(t), testRef.Identifier)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !rec.Playable() {
			t.Errorf("expected READY with URL, got %s %q", rec.Status, rec.URL)
		}
		waitFor(t, func() bool { return !c.Active(testRef.Identifier) })
	})

	t.Run("Wait Blocks Until URL Resolves", func(t *testing.T) {
		network := tu.NewFakeNetwork()
		network.URLErr = errors.New("connection reset")
		network.SetStatuses(testRef.Identifier, tu.Ready())
		c := newTestCoordinator(t, network)

		c.RequestDownload(context.Background(), testRef, meta)
		waitFor(t, func() bool {
			rec, _ := c.Record(testRef.Identifier)
			return rec.Status == models.DownloadReady
		})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if rec, err := c.Wait(ctx, testRef.Identifier); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected Wait to block without a URL, got %s %q %v", rec.Status, rec.URL, err)
		}

		network.SetURLErr(nil)
		rec, err := c.Wait(waitCtx(t), testRef.Identifier)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if rec.URL == "" {
			t.Error("expected resolved URL")
		}
	})

	t.Run("Abandon Ready Without URL", func(t *testing.T) {
		network := tu.NewFakeNetwork()
		network.URLErr = errors.New("connection reset")
		network.SetStatuses(testRef.Identifier, tu.Ready())
		c := newTestCoordinator(t, network)

		c.RequestDownload(context.Background(), testRef, meta)
		waitFor(t, func() bool {
			rec, _ := c.Record(testRef.Identifier)
			return rec.Status == models.DownloadReady
		})

		if err := c.Abandon(testRef.Identifier); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		rec, err := c.Wait(waitCtx(t), testRef.Identifier)
		if !errors.Is(err, shared.ErrAbandoned) {
			t.Errorf("expected ErrAbandoned, got %v", err)
		}
		if rec.Status != models.DownloadReady {
			t.Errorf("expected READY to stay terminal, got %s", rec.Status)
		}

		t.Run("Request Restarts Resolution", func(t *testing.T) {
			network.SetURLErr(nil)
			if err := c.RequestDownload(context.Background(), testRef, meta); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			rec, err := c.Wait(waitCtx(t), testRef.Identifier)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if rec.URL == "" {
				t.Error("expected resolved URL")
			}
		})
	})

	t.Run("Versions Increase With Every Change", func(t *testing.T) {
		network := tu.NewFakeNetwork()
		network.SetStatuses(testRef.Identifier, tu.Percent(10), tu.Percent(50), tu.Ready())
		c := newTestCoordinator(t, network)

		var (
			mu       sync.Mutex
			versions = map[uint64]bool{}
			highest  uint64
		)
		c.SetUpdateCallback(func(rec models.DownloadRecord) {
			mu.Lock()
			defer mu.Unlock()
			if versions[rec.Version] {
				t.Errorf("version %d delivered twice", rec.Version)
			}
			versions[rec.Version] = true
			highest = max(highest, rec.Version)
		})

		c.RequestDownload(context.Background(), testRef, meta)
		rec, err := c.Wait(waitCtx(t), testRef.Identifier)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		waitFor(t, func() bool { return !c.Active(testRef.Identifier) })

		final, _ := c.Record(testRef.Identifier)
		waitFor(t, func() bool {
			mu.Lock()
			defer mu.Unlock()
			return highest == final.Version
		})

		mu.Lock()
		defer mu.Unlock()
		if rec.Version > final.Version {
			t.Errorf("expected versions to only grow, got %d then %d", rec.Version, final.Version)
		}
		if len(versions) < 3 {
			t.Errorf("expected several distinct versions, got %d", len(versions))
		}
	})

	t.Run("Subscribe", func(t *testing.T) {
		network := tu.NewFakeNetwork()
		network.SetStatuses(testRef.Identifier, tu.Ready())
		c := newTestCoordinator(t, network)

		updates, unsubscribe := c.Subscribe(64)
		defer unsubscribe()

		c.RequestDownload(context.Background(), testRef, meta)

		ctx := waitCtx(t)
		for {
			select {
			case rec := <-updates:
				if rec.Status == models.DownloadReady {
					return
				}
			case <-ctx.Done():
				t.Fatal("expected READY update")
			}
		}
	})

	t.Run("Close", func(t *testing.T) {
		network := tu.NewFakeNetwork()
		network.SetStatuses(testRef.Identifier, tu.Percent(5))
		c := newTestCoordinator(t, network)

		c.RequestDownload(context.Background(), testRef, meta)
		c.Close()

		other := models.NewResourceRef("alice", models.ServiceAudio, "other")
		if err := c.RequestDownload(context.Background(), other, meta); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable after close, got %v", err)
		}
	})

	t.Run("Close Concurrent With Requests", func(t *testing.T) {
		network := tu.NewFakeNetwork()
		c := newTestCoordinator(t, network)

		var wg sync.WaitGroup
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ref := models.NewResourceRef("alice", models.ServiceAudio, fmt.Sprintf("song_%d", i))
				err := c.RequestDownload(context.Background(), ref, meta)
				if err != nil && !errors.Is(err, shared.ErrServiceUnavailable) {
					t.Errorf("unexpected error %v", err)
				}
			}(i)
		}
		c.Close()
		wg.Wait()

		for _, rec := range c.Records() {
			if c.Active(rec.Ref.Identifier) {
				t.Errorf("expected %s to be stopped after close", rec.Ref.Identifier)
			}
		}
	})

	t.Run("Wait Unknown Identifier", func(t *testing.T) {
		c := newTestCoordinator(t, tu.NewFakeNetwork())
		if _, err := c.Wait(context.Background(), "missing"); !errors.Is(err, shared.ErrResourceNotFound) {
			t.Errorf("expected ErrResourceNotFound, got %v", err)
		}
	})
}
