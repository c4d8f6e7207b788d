package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/earbump/internal/models"
	"github.com/desertthunder/earbump/internal/publish"
	"github.com/desertthunder/earbump/internal/shared"
	tu "github.com/desertthunder/earbump/internal/testing"
)

const testOwner = "alice"

func fixedSuffix() string { return "abcd1234" }

func songID(title string) string {
	return publish.NewIdentifier("earbump_song_", title, fixedSuffix())
}

func newJob(t *testing.T, title string, targets ...models.PlaylistTarget) *publish.Job {
	t.Helper()
	job, err := publish.NewAudioJob(publish.Submission{
		Title:    title,
		Author:   testOwner,
		Category: "rock",
		File:     &publish.Asset{Name: "song.mp3", Data: []byte("audio " + title)},
	}, targets...)
	if err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

// reports collects queue reports from the drain goroutine.
type reports struct {
	mu      sync.Mutex
	jobs    []JobReport
	flushes []FlushResult
}

func (r *reports) add(rep Report) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rep.Job != nil {
		r.jobs = append(r.jobs, *rep.Job)
	}
	if rep.Flush != nil {
		r.flushes = append(r.flushes, *rep.Flush)
	}
}

func (r *reports) Jobs() []JobReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]JobReport(nil), r.jobs...)
}

func (r *reports) Flushes() []FlushResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]FlushResult(nil), r.flushes...)
}

type memoryRecorder struct {
	mu    sync.Mutex
	saved []models.PublishedResource
	err   error
}

func (m *memoryRecorder) SavePublished(ctx context.Context, res models.PublishedResource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, res)
	return m.err
}

type queueFixture struct {
	network  *tu.FakeNetwork
	identity *tu.SwitchableIdentity
	queue    *PublishQueue
	reports  *reports
}

func newQueueFixture(t *testing.T, opts QueueOpts) *queueFixture {
	t.Helper()
	network := tu.NewFakeNetwork()
	identity := tu.NewSwitchableIdentity(testOwner)
	logger := shared.NewLogger(io.Discard)
	rep := &reports{}

	opts.Build.Suffix = fixedSuffix
	opts.Logger = logger
	opts.Report = rep.add

	aggregator := NewPlaylistAggregator(network, AggregatorOpts{Suffix: func() string { return "pl000001" }, Logger: logger})
	queue := NewPublishQueue(network, identity, aggregator, opts)
	t.Cleanup(queue.Close)
	return &queueFixture{network: network, identity: identity, queue: queue, reports: rep}
}

func (f *queueFixture) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := f.queue.Wait(ctx); err != nil {
		t.Fatalf("queue did not drain: %v", err)
	}
}

func decodePlaylist(t *testing.T, data []byte) models.PlaylistDocument {
	t.Helper()
	var doc models.PlaylistDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("failed to decode playlist: %v", err)
	}
	return doc
}

func TestPublishQueue(t *testing.T) {
	t.Run("Publishes In Enqueue Order", func(t *testing.T) {
		f := newQueueFixture(t, QueueOpts{})
		titles := []string{"Song A", "Song B", "Song C"}

		var jobs []*publish.Job
		for _, title := range titles {
			jobs = append(jobs, newJob(t, title))
		}
		if err := f.queue.Enqueue(context.Background(), jobs...); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		f.wait(t)

		bundles := f.network.PublishedOf(models.ServiceAudio)
		if len(bundles) != len(titles) {
			t.Fatalf("expected %d publishes, got %d", len(titles), len(bundles))
		}
		for i, title := range titles {
			if got := bundles[i][0].Ref.Identifier; got != songID(title) {
				t.Errorf("publish %d: expected %s, got %s", i, songID(title), got)
			}
		}

		got := f.reports.Jobs()
		if len(got) != 3 {
			t.Fatalf("expected 3 reports, got %d", len(got))
		}
		for i, r := range got {
			if !r.OK() {
				t.Errorf("report %d failed: %v", i, r.Err)
			}
			if r.Owner != testOwner {
				t.Errorf("report %d owner = %q", i, r.Owner)
			}
		}
		if f.queue.Pending() != 0 || f.queue.Running() {
			t.Error("expected queue to be idle")
		}
	})

	t.Run("Partial Failure Continues", func(t *testing.T) {
		f := newQueueFixture(t, QueueOpts{})
		target := models.NewPlaylist("Mix", "", "")
		f.network.FailPublish(songID("Song B"), shared.ErrAPIRequest)

		jobs := []*publish.Job{
			newJob(t, "Song A", target),
			newJob(t, "Song B", target),
			newJob(t, "Song C", target),
		}
		if err := f.queue.Enqueue(context.Background(), jobs...); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		f.wait(t)

		got := f.reports.Jobs()
		if len(got) != 3 {
			t.Fatalf("expected 3 reports, got %d", len(got))
		}
		if !got[0].OK() || !got[2].OK() {
			t.Errorf("expected A and C to succeed, got %v and %v", got[0].Err, got[2].Err)
		}
		if !errors.Is(got[1].Err, shared.ErrAPIRequest) {
			t.Errorf("expected B to fail with ErrAPIRequest, got %v", got[1].Err)
		}

		playlists := f.network.PublishedOf(models.ServicePlaylist)
		if len(playlists) != 1 {
			t.Fatalf("expected 1 playlist publish, got %d", len(playlists))
		}
		doc := decodePlaylist(t, playlists[0][0].Data)
		if len(doc.Songs) != 2 {
			t.Fatalf("expected 2 songs, got %d", len(doc.Songs))
		}
		if doc.Songs[0].Identifier != songID("Song A") || doc.Songs[1].Identifier != songID("Song C") {
			t.Errorf("unexpected songs: %+v", doc.Songs)
		}
	})

	t.Run("One Write Per Playlist", func(t *testing.T) {
		f := newQueueFixture(t, QueueOpts{})
		existingRef := models.NewResourceRef(testOwner, models.ServicePlaylist, "earbump_playlist_faves_00000000")
		seed, _ := json.Marshal(models.PlaylistDocument{
			Title: "Faves",
			Songs: []models.SongReference{{Identifier: songID("Song A"), Name: testOwner, Service: models.ServiceAudio}},
		})
		f.network.Put(existingRef, seed)

		existing := models.ExistingPlaylist(existingRef.Identifier)
		fresh := models.NewPlaylist("Road Trip", "summer", "trip")

		jobs := []*publish.Job{
			newJob(t, "Song A", existing, fresh),
			newJob(t, "Song B", existing, fresh),
			newJob(t, "Song C", existing),
		}
		if err := f.queue.Enqueue(context.Background(), jobs...); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		f.wait(t)

		if calls := f.network.FetchCalls(existingRef.Identifier); calls != 1 {
			t.Errorf("expected one read of the existing playlist, got %d", calls)
		}
		playlists := f.network.PublishedOf(models.ServicePlaylist)
		if len(playlists) != 2 {
			t.Fatalf("expected 2 playlist publishes, got %d", len(playlists))
		}

		data, _ := f.network.Get(existingRef)
		doc := decodePlaylist(t, data)
		if len(doc.Songs) != 3 {
			t.Errorf("expected existing playlist to hold 3 songs, got %d", len(doc.Songs))
		}

		flushes := f.reports.Flushes()
		if len(flushes) != 2 {
			t.Fatalf("expected 2 flush reports, got %d", len(flushes))
		}
		if flushes[0].Added != 2 || flushes[0].Total != 3 {
			t.Errorf("existing flush: added %d total %d", flushes[0].Added, flushes[0].Total)
		}
		if flushes[1].Added != 2 || flushes[1].Playlist.Identifier != "earbump_playlist_road_trip_pl000001" {
			t.Errorf("new flush: %+v", flushes[1])
		}
	})

	t.Run("Identity Loss Drops Remaining Jobs", func(t *testing.T) {
		f := newQueueFixture(t, QueueOpts{})
		var mu sync.Mutex
		calls := 0
		f.network.PublishFunc = func(resources []models.ResourcePayload) ([]string, error) {
			mu.Lock()
			calls++
			mu.Unlock()
			f.identity.Set("")
			return []string{resources[0].Ref.Identifier}, nil
		}

		target := models.NewPlaylist("Mix", "", "")
		jobs := []*publish.Job{
			newJob(t, "Song A", target),
			newJob(t, "Song B", target),
			newJob(t, "Song C", target),
		}
		if err := f.queue.Enqueue(context.Background(), jobs...); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		f.wait(t)

		got := f.reports.Jobs()
		if len(got) != 3 {
			t.Fatalf("expected 3 reports, got %d", len(got))
		}
		if !got[0].OK() {
			t.Errorf("expected first job to succeed, got %v", got[0].Err)
		}
		for _, r := range got[1:] {
			if !IsIdentityLoss(r.Err) {
				t.Errorf("expected identity loss for %s, got %v", r.Title, r.Err)
			}
		}

		mu.Lock()
		defer mu.Unlock()
		if calls != 1 {
			t.Errorf("expected only the first job to publish, got %d calls", calls)
		}
		if len(f.reports.Flushes()) != 0 {
			t.Error("expected no playlist flush after identity loss")
		}
	})

	t.Run("Identity Change Drops Remaining Jobs", func(t *testing.T) {
		f := newQueueFixture(t, QueueOpts{})
		f.network.PublishFunc = func(resources []models.ResourcePayload) ([]string, error) {
			f.identity.Set("bob")
			return []string{resources[0].Ref.Identifier}, nil
		}

		if err := f.queue.Enqueue(context.Background(), newJob(t, "Song A"), newJob(t, "Song B")); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		f.wait(t)

		got := f.reports.Jobs()
		if len(got) != 2 {
			t.Fatalf("expected 2 reports, got %d", len(got))
		}
		if !errors.Is(got[1].Err, shared.ErrIdentityChanged) || !IsIdentityLoss(got[1].Err) {
			t.Errorf("expected identity change error, got %v", got[1].Err)
		}
	})

	t.Run("Identifier Mismatch Fails Job", func(t *testing.T) {
		f := newQueueFixture(t, QueueOpts{})
		f.network.PublishFunc = func(resources []models.ResourcePayload) ([]string, error) {
			return []string{"somebody_else"}, nil
		}

		if err := f.queue.Enqueue(context.Background(), newJob(t, "Song A", models.NewPlaylist("Mix", "", ""))); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		f.wait(t)

		got := f.reports.Jobs()
		if len(got) != 1 || !errors.Is(got[0].Err, shared.ErrPublishMismatch) {
			t.Fatalf("expected mismatch error, got %+v", got)
		}
		if len(f.reports.Flushes()) != 0 {
			t.Error("expected empty playlist to be skipped")
		}
	})

	t.Run("Enqueue Validation", func(t *testing.T) {
		f := newQueueFixture(t, QueueOpts{})

		if err := f.queue.Enqueue(context.Background(), nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}

		f.identity.Set("")
		if err := f.queue.Enqueue(context.Background(), newJob(t, "Song A")); !errors.Is(err, shared.ErrIdentityUnavailable) {
			t.Errorf("expected ErrIdentityUnavailable, got %v", err)
		}
		if f.queue.Pending() != 0 {
			t.Error("expected nothing queued")
		}

		if err := f.queue.Enqueue(context.Background()); err != nil {
			t.Errorf("expected empty enqueue to be a no-op, got %v", err)
		}
	})

	t.Run("Records Published Resources", func(t *testing.T) {
		recorder := &memoryRecorder{err: errors.New("disk full")}
		f := newQueueFixture(t, QueueOpts{Recorder: recorder})

		if err := f.queue.Enqueue(context.Background(), newJob(t, "Song A", models.NewPlaylist("Mix", "", ""))); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		f.wait(t)

		if !f.reports.Jobs()[0].OK() {
			t.Fatal("recorder errors should not fail the job")
		}
		recorder.mu.Lock()
		defer recorder.mu.Unlock()
		if len(recorder.saved) != 2 {
			t.Fatalf("expected song and playlist to be recorded, got %d", len(recorder.saved))
		}
		if recorder.saved[0].Ref.Service != models.ServiceAudio || recorder.saved[1].Ref.Service != models.ServicePlaylist {
			t.Errorf("unexpected records: %+v", recorder.saved)
		}
	})

	t.Run("Progress Updates", func(t *testing.T) {
		progress := make(chan ProgressUpdate, 32)
		f := newQueueFixture(t, QueueOpts{Progress: progress})

		if err := f.queue.Enqueue(context.Background(), newJob(t, "Song A"), newJob(t, "Song B")); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		f.wait(t)

		var phases []Phase
		for len(progress) > 0 {
			phases = append(phases, (<-progress).Phase)
		}
		want := []Phase{EnqueueJobs, BuildJob, PublishJob, BuildJob, PublishJob, QueueDrained}
		if len(phases) != len(want) {
			t.Fatalf("expected phases %v, got %v", want, phases)
		}
		for i := range want {
			if phases[i] != want[i] {
				t.Errorf("phase %d: expected %s, got %s", i, want[i], phases[i])
			}
		}
	})

	t.Run("Second Run After Drain", func(t *testing.T) {
		f := newQueueFixture(t, QueueOpts{})

		if err := f.queue.Enqueue(context.Background(), newJob(t, "Song A")); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		f.wait(t)
		if err := f.queue.Enqueue(context.Background(), newJob(t, "Song B")); err != nil {
			t.Fatalf("Enqueue() error = %v", err)
		}
		f.wait(t)

		if got := len(f.network.PublishedOf(models.ServiceAudio)); got != 2 {
			t.Errorf("expected 2 publishes, got %d", got)
		}
	})

	t.Run("Closed Queue Rejects Jobs", func(t *testing.T) {
		f := newQueueFixture(t, QueueOpts{})
		f.queue.Close()

		if err := f.queue.Enqueue(context.Background(), newJob(t, "Song A")); !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})
}

func TestVerifyPublished(t *testing.T) {
	payloads := []models.ResourcePayload{
		{Ref: models.NewResourceRef(testOwner, models.ServiceAudio, "song")},
		{Ref: models.NewResourceRef(testOwner, models.ServiceThumbnail, "song")},
	}

	tests := []struct {
		name    string
		ids     []string
		wantErr bool
	}{
		{"one id per resource", []string{"song", "song"}, false},
		{"deduplicated", []string{"song"}, false},
		{"unexpected identifier", []string{"song", "other"}, true},
		{"missing acknowledgement", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := verifyPublished(payloads, tt.ids)
			if (err != nil) != tt.wantErr {
				t.Fatalf("verifyPublished() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, shared.ErrPublishMismatch) {
				t.Errorf("expected ErrPublishMismatch, got %v", err)
			}
		})
	}
}
