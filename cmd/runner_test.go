package main

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"

	"github.com/desertthunder/earbump/internal/downloads"
	"github.com/desertthunder/earbump/internal/services"
	"github.com/desertthunder/earbump/internal/shared"
	tu "github.com/desertthunder/earbump/internal/testing"
)

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(io.Discard)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			network := tu.NewFakeNetwork()
			identity := tu.NewSwitchableIdentity("alice")
			coordinator := downloads.NewCoordinator(network, downloads.Options{Logger: logger})
			db := tu.MustOpenTestDB(t)

			runner := NewRunner(RunnerOpts{
				Config:     config,
				Logger:     logger,
				Output:     output,
				HTTPClient: httpClient,
				Network:    network,
				Identity:   identity,
				Downloads:  coordinator,
				DB:         db,
			})
			defer coordinator.Close()

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.network != network {
				t.Error("expected network to be set")
			}
			if runner.identity != identity {
				t.Error("expected identity to be set")
			}
			if runner.downloads != coordinator {
				t.Error("expected downloads to be set")
			}
			if got, err := runner.database(); err != nil || got != db {
				t.Errorf("expected injected database, got %v (%v)", got, err)
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Config: nil})
			defer runner.downloads.Close()

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Logger: nil})
			defer runner.downloads.Close()

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: nil})
			defer runner.downloads.Close()

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil httpClient uses config timeout", func(t *testing.T) {
			config := shared.DefaultConfig()
			runner := NewRunner(RunnerOpts{Config: config})
			defer runner.downloads.Close()

			if runner.httpClient == nil {
				t.Fatal("expected httpClient to be set")
			}
			if runner.httpClient.Timeout != config.Node.Timeout() {
				t.Errorf("expected timeout %v, got %v", config.Node.Timeout(), runner.httpClient.Timeout)
			}
		})

		t.Run("with nil services builds them from config", func(t *testing.T) {
			config := shared.DefaultConfig()
			config.Publish.Name = "alice"
			runner := NewRunner(RunnerOpts{Config: config})
			defer runner.downloads.Close()

			if _, ok := runner.network.(*services.NodeService); !ok {
				t.Errorf("expected node service, got %T", runner.network)
			}
			if runner.identity != services.StaticIdentity("alice") {
				t.Errorf("expected static identity for alice, got %v", runner.identity)
			}
			if runner.downloads == nil {
				t.Error("expected download coordinator to be set")
			}
		})
	})

	t.Run("database", func(t *testing.T) {
		config := shared.DefaultConfig()
		config.Database.Path = t.TempDir() + "/earbump.db"
		runner := NewRunner(RunnerOpts{Config: config, Logger: shared.NewLogger(io.Discard)})
		defer runner.Close()

		first, err := runner.database()
		if err != nil {
			t.Fatalf("failed to open database: %v", err)
		}
		second, err := runner.database()
		if err != nil {
			t.Fatalf("failed to reopen database: %v", err)
		}
		if first != second {
			t.Error("expected the database to be opened once")
		}
		if _, err := runner.favorites(); err != nil {
			t.Errorf("expected favorites repository, got %v", err)
		}
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})
			defer runner.downloads.Close()

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})
			defer runner.downloads.Close()

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})
			defer runner.downloads.Close()

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			defer runner.downloads.Close()

			err := runner.writeJSON(map[string]string{"key": "value"}, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})
			defer runner.downloads.Close()

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			if result := output.String(); result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})
			defer runner.downloads.Close()

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		defer runner.downloads.Close()
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		seen := make(map[string]bool)
		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
				continue
			}
			if seen[cmd.Name] {
				t.Errorf("duplicate command %q", cmd.Name)
			}
			seen[cmd.Name] = true
		}

		for _, name := range []string{"setup", "play", "status", "publish", "watch", "search", "favorites", "serve", "tui"} {
			if !seen[name] {
				t.Errorf("expected %q command to be registered", name)
			}
		}
	})
}
