package tts_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"dubmaster/internal/config"
	"dubmaster/internal/tts"
)

func TestFishClientAvailability(t *testing.T) {
	cases := []struct {
		name string
		cfg  config.FishAudio
		want bool
	}{
		{"disabled", config.FishAudio{Enabled: false, APIKey: "key"}, false},
		{"no key", config.FishAudio{Enabled: true, APIKey: ""}, false},
		{"ready", config.FishAudio{Enabled: true, APIKey: "key"}, true},
	}
	for _, tc := range cases {
		client := tts.NewFishClient(tc.cfg)
		if got := client.Available(); got != tc.want {
			t.Errorf("%s: Available() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCloneSpeakerSendsReferenceSample(t *testing.T) {
	dir := t.TempDir()
	sample := filepath.Join(dir, "voice_sample.wav")
	if err := os.WriteFile(sample, []byte("reference-audio"), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/tts" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer fish-key" {
			t.Errorf("missing bearer auth, got %q", got)
		}
		var req struct {
			Text       string `json:"text"`
			Format     string `json:"format"`
			References []struct {
				Audio string `json:"audio"`
			} `json:"references"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Text != "hello clone" || req.Format != "mp3" {
			t.Errorf("unexpected request: %+v", req)
		}
		want := base64.StdEncoding.EncodeToString([]byte("reference-audio"))
		if len(req.References) != 1 || req.References[0].Audio != want {
			t.Error("reference sample not forwarded")
		}
		w.Write([]byte("cloned-mp3-bytes"))
	}))
	defer server.Close()

	client := tts.NewFishClient(config.FishAudio{
		Enabled: true,
		APIKey:  "fish-key",
		BaseURL: server.URL,
	})
	speaker, err := client.Speaker(sample)
	if err != nil {
		t.Fatalf("Speaker failed: %v", err)
	}

	dest := filepath.Join(dir, "segment_0000.mp3")
	if err := speaker.Speak(context.Background(), "hello clone", dest); err != nil {
		t.Fatalf("Speak failed: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil || string(data) != "cloned-mp3-bytes" {
		t.Fatalf("output not written: %v %q", err, data)
	}
}

func TestCloneSpeakerHTTPError(t *testing.T) {
	dir := t.TempDir()
	sample := filepath.Join(dir, "voice_sample.wav")
	if err := os.WriteFile(sample, []byte("x"), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
	}))
	defer server.Close()

	client := tts.NewFishClient(config.FishAudio{Enabled: true, APIKey: "k", BaseURL: server.URL})
	speaker, err := client.Speaker(sample)
	if err != nil {
		t.Fatalf("Speaker failed: %v", err)
	}
	if err := speaker.Speak(context.Background(), "text", filepath.Join(dir, "out.mp3")); err == nil {
		t.Fatal("expected error for http failure")
	}
}

func TestSpeakersLadderOrder(t *testing.T) {
	dir := t.TempDir()
	sample := filepath.Join(dir, "voice_sample.wav")
	if err := os.WriteFile(sample, []byte("x"), 0o644); err != nil {
		t.Fatalf("write sample: %v", err)
	}

	ttsCfg := config.TTS{Binary: "edge-tts", SegmentTimeoutSeconds: 60, Workers: 2}

	// Cloning configured: ladder is clone then standard voice.
	fish := tts.NewFishClient(config.FishAudio{Enabled: true, APIKey: "k", BaseURL: "http://example.com"})
	speakers := tts.Speakers(ttsCfg, fish, sample, "hi", tts.Female, nil)
	if len(speakers) != 2 {
		t.Fatalf("expected 2 speakers, got %d", len(speakers))
	}
	if speakers[0].Name() != "fish-audio/clone" {
		t.Fatalf("cloning speaker must lead the ladder, got %s", speakers[0].Name())
	}
	if speakers[1].Name() != "edge-tts/hi-IN-SwaraNeural" {
		t.Fatalf("unexpected standard speaker: %s", speakers[1].Name())
	}

	// Cloning unavailable: standard voice only.
	fishOff := tts.NewFishClient(config.FishAudio{})
	speakers = tts.Speakers(ttsCfg, fishOff, sample, "hi", tts.Female, nil)
	if len(speakers) != 1 || speakers[0].Name() != "edge-tts/hi-IN-SwaraNeural" {
		t.Fatalf("expected standard speaker only, got %#v", speakers)
	}
}
