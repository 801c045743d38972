package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"dubmaster/internal/config"
	"dubmaster/internal/services"
)

// FishClient talks to the Fish Audio voice cloning API.
type FishClient struct {
	cfg        config.FishAudio
	httpClient *http.Client
}

// FishOption customizes the client.
type FishOption func(*FishClient)

// WithFishHTTPClient overrides the default HTTP client.
func WithFishHTTPClient(client *http.Client) FishOption {
	return func(c *FishClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewFishClient constructs a voice cloning client.
func NewFishClient(cfg config.FishAudio, opts ...FishOption) *FishClient {
	timeout := 120 * time.Second
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &FishClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Available reports whether cloning is usable with the current configuration.
func (c *FishClient) Available() bool {
	return c != nil && c.cfg.Enabled && strings.TrimSpace(c.cfg.APIKey) != ""
}

// Speaker builds a cloning speaker from a reference voice sample extracted
// from the source video. The sample is loaded once and reused for every
// segment.
func (c *FishClient) Speaker(referenceAudio string) (*CloneSpeaker, error) {
	if !c.Available() {
		return nil, services.Wrap(services.ErrConfiguration, "synthesis", "fish-audio", "voice cloning not configured", nil)
	}
	sample, err := os.ReadFile(referenceAudio)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "synthesis", "fish-audio", "read voice sample", err)
	}
	return &CloneSpeaker{client: c, sample: sample}, nil
}

// CloneSpeaker synthesizes speech in a voice cloned from a reference sample.
type CloneSpeaker struct {
	client *FishClient
	sample []byte
}

// Name implements Speaker.
func (s *CloneSpeaker) Name() string {
	return "fish-audio/clone"
}

type fishTTSRequest struct {
	Text       string          `json:"text"`
	Format     string          `json:"format"`
	References []fishReference `json:"references"`
}

type fishReference struct {
	Audio string `json:"audio"`
	Text  string `json:"text"`
}

// Speak implements Speaker by calling the cloning API and writing the
// returned audio to dest.
func (s *CloneSpeaker) Speak(ctx context.Context, text, dest string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, "synthesis", "fish-audio", "empty text", nil)
	}

	payload := fishTTSRequest{
		Text:   text,
		Format: "mp3",
		References: []fishReference{
			{Audio: base64.StdEncoding.EncodeToString(s.sample)},
		},
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "synthesis", "fish-audio", "encode request", err)
	}

	endpoint := strings.TrimRight(s.client.cfg.BaseURL, "/") + "/v1/tts"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "synthesis", "fish-audio", "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.client.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "synthesis", "fish-audio", "cloning request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return services.Wrap(services.ErrExternalTool, "synthesis", "fish-audio",
			fmt.Sprintf("cloning request returned http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}

	out, err := os.Create(dest)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "synthesis", "fish-audio", "create output file", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, resp.Body); err != nil {
		return services.Wrap(services.ErrExternalTool, "synthesis", "fish-audio", "write output file", err)
	}
	return nil
}
