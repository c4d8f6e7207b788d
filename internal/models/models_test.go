package models

import "testing"

func TestParsers(t *testing.T) {
	t.Run("ParseService", func(t *testing.T) {
		tests := []struct {
			in      string
			want    Service
			wantErr bool
		}{
			{"AUDIO", ServiceAudio, false},
			{" playlist ", ServicePlaylist, false},
			{"thumbnail", ServiceThumbnail, false},
			{"PODCAST", "", true},
			{"", "", true},
		}
		for _, tt := range tests {
			got, err := ParseService(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseService(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseService(%q) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})

	t.Run("ParseContentType", func(t *testing.T) {
		tests := []struct {
			in      string
			want    ContentType
			wantErr bool
		}{
			{"audio", ContentAudio, false},
			{"song", ContentAudio, false},
			{"Podcast", ContentPodcast, false},
			{"AUDIOBOOK", ContentAudiobook, false},
			{"video", "", true},
		}
		for _, tt := range tests {
			got, err := ParseContentType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseContentType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseContentType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})
}

func TestResourceRef(t *testing.T) {
	ref := NewResourceRef("alice", ServiceAudio, "earbump_song_one_abcd1234")

	if ref.String() != "AUDIO/alice/earbump_song_one_abcd1234" {
		t.Errorf("unexpected string %q", ref.String())
	}
	if err := ref.Validate(); err != nil {
		t.Errorf("expected valid ref, got %v", err)
	}

	for name, bad := range map[string]ResourceRef{
		"missing identifier": NewResourceRef("alice", ServiceAudio, ""),
		"missing owner":      NewResourceRef("", ServiceAudio, "song"),
		"unknown service":    NewResourceRef("alice", Service("SPREADSHEET"), "song"),
	} {
		if err := bad.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestPlaylistTarget(t *testing.T) {
	t.Run("Key", func(t *testing.T) {
		if got := ExistingPlaylist("mix").Key(); got != "existing:mix" {
			t.Errorf("unexpected key %q", got)
		}
		if got := NewPlaylist("Road Trip", "", "").Key(); got != "new:Road Trip" {
			t.Errorf("expected shared key to default to title, got %q", got)
		}
		if got := NewPlaylist("Road Trip", "", "batch-1").Key(); got != "new:batch-1" {
			t.Errorf("unexpected key %q", got)
		}
	})

	t.Run("Validate", func(t *testing.T) {
		tests := []struct {
			name    string
			target  PlaylistTarget
			wantErr bool
		}{
			{"existing", ExistingPlaylist("mix"), false},
			{"new", NewPlaylist("Road Trip", "desc", ""), false},
			{"existing without id", ExistingPlaylist(""), true},
			{"new without title", PlaylistTarget{Kind: TargetNew, SharedKey: "k"}, true},
			{"new without key", PlaylistTarget{Kind: TargetNew, Title: "t"}, true},
			{"unknown kind", PlaylistTarget{Kind: TargetKind(7)}, true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.target.Validate(); (err != nil) != tt.wantErr {
					t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
				}
			})
		}
	})
}

func TestPlaylistDocument(t *testing.T) {
	doc := &PlaylistDocument{
		Title: "Mix",
		Songs: []SongReference{{Identifier: "a"}, {Identifier: "b"}},
	}

	added := doc.Merge([]SongReference{{Identifier: "b"}, {Identifier: "c"}, {Identifier: "c"}})
	if added != 1 {
		t.Errorf("expected 1 song added, got %d", added)
	}

	want := []string{"a", "b", "c"}
	if len(doc.Songs) != len(want) {
		t.Fatalf("expected %d songs, got %d", len(want), len(doc.Songs))
	}
	for i, id := range want {
		if doc.Songs[i].Identifier != id {
			t.Errorf("position %d: expected %s, got %s", i, id, doc.Songs[i].Identifier)
		}
	}
	if !doc.HasSong("c") || doc.HasSong("d") {
		t.Error("unexpected HasSong result")
	}
}

func TestDownloadStatus(t *testing.T) {
	terminal := map[DownloadStatus]bool{
		DownloadRequested:         false,
		DownloadFetchingURL:       false,
		DownloadTransferring:      false,
		DownloadStalledRefetching: false,
		DownloadReady:             true,
		DownloadFailed:            true,
	}
	for status, want := range terminal {
		if status.IsTerminal() != want {
			t.Errorf("%s: IsTerminal() = %v, want %v", status, !want, want)
		}
		if status.IsActive() == want {
			t.Errorf("%s: IsActive() should be the inverse of IsTerminal()", status)
		}
	}

	rec := DownloadRecord{Ref: NewResourceRef("alice", ServiceAudio, "song")}
	if rec.DisplayTitle() != "song" {
		t.Errorf("expected identifier fallback, got %q", rec.DisplayTitle())
	}
}

func TestDownloadRecord(t *testing.T) {
	t.Run("Playable", func(t *testing.T) {
		tests := []struct {
			name string
			rec  DownloadRecord
			want bool
		}{
			{"ready with url", DownloadRecord{Status: DownloadReady, URL: "http://node/a"}, true},
			{"ready without url", DownloadRecord{Status: DownloadReady}, false},
			{"transferring with url", DownloadRecord{Status: DownloadTransferring, URL: "http://node/a"}, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if got := tt.rec.Playable(); got != tt.want {
					t.Errorf("Playable() = %v, want %v", got, tt.want)
				}
			})
		}
	})

	t.Run("StaleAgainst", func(t *testing.T) {
		older := DownloadRecord{Version: 3}
		newer := DownloadRecord{Version: 4}
		if !older.StaleAgainst(newer) {
			t.Error("expected v3 to be stale against v4")
		}
		if newer.StaleAgainst(older) || newer.StaleAgainst(newer) {
			t.Error("expected equal or newer versions not to be stale")
		}
	})

	t.Run("Unpublished Is Not Unavailable", func(t *testing.T) {
		if (ResourceStatus{Status: NodeStatusNotPublished}).IsUnavailable() {
			t.Error("expected NOT_PUBLISHED to allow later replication")
		}
		if !(ResourceStatus{Status: NodeStatusBlocked}).IsUnavailable() {
			t.Error("expected BLOCKED to be unavailable")
		}
	})
}
