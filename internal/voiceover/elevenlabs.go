// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package voiceover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/ManuGH/mediamix/internal/cache"
	"github.com/ManuGH/mediamix/internal/fsutil"
	xglog "github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/metrics"
)

// ElevenLabsConfig configures the ElevenLabs adapter.
type ElevenLabsConfig struct {
	BaseURL         string
	APIKey          string
	ModelID         string
	OutputFormat    string
	Stability       float64
	SimilarityBoost float64
	Timeout         time.Duration // per API call
	RatePerSecond   float64       // 0 disables client-side limiting
	Burst           int

	// VoiceCache keeps resolved voice IDs for VoiceCacheTTL. Nil disables it.
	VoiceCache    cache.Cache
	VoiceCacheTTL time.Duration
}

// Defaults for the ElevenLabs adapter.
const (
	DefaultElevenLabsURL = "https://api.elevenlabs.io"
	DefaultModelID       = "eleven_multilingual_v2"
	DefaultOutputFormat  = "mp3_44100_128"
	DefaultTimeout       = 120 * time.Second
	DefaultVoiceCacheTTL = time.Hour
)

// ElevenLabs synthesizes voiceovers through the ElevenLabs HTTP API. The voice
// name is resolved with the voice search endpoint and the first match is used.
type ElevenLabs struct {
	cfg     ElevenLabsConfig
	client  *http.Client
	limiter *rate.Limiter
	lookups singleflight.Group
	logger  zerolog.Logger
}

// NewElevenLabs builds the adapter. A nil client uses http.DefaultClient.
func NewElevenLabs(cfg ElevenLabsConfig, client *http.Client) *ElevenLabs {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultElevenLabsURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultModelID
	}
	if cfg.OutputFormat == "" {
		cfg.OutputFormat = DefaultOutputFormat
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.VoiceCacheTTL <= 0 {
		cfg.VoiceCacheTTL = DefaultVoiceCacheTTL
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return &ElevenLabs{
		cfg:     cfg,
		client:  client,
		limiter: limiter,
		logger:  xglog.WithComponent("voiceover"),
	}
}

type voiceSearchResponse struct {
	Voices []struct {
		VoiceID string `json:"voice_id"`
		Name    string `json:"name"`
	} `json:"voices"`
}

type ttsRequest struct {
	Text          string         `json:"text"`
	ModelID       string         `json:"model_id"`
	VoiceSettings *voiceSettings `json:"voice_settings,omitempty"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize implements Synthesizer.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, voice, dir string) (path string, err error) {
	logger := xglog.WithContext(ctx, e.logger).With().Str(xglog.FieldVoice, voice).Logger()
	defer func() {
		switch {
		case errors.Is(err, ErrVoiceNotFound):
			metrics.RecordSynthesis("voice_not_found")
		case err != nil:
			metrics.RecordSynthesis("error")
		default:
			metrics.RecordSynthesis("success")
		}
	}()

	target, err := fsutil.ConfineRelPath(dir, FileName(text, voice))
	if err != nil {
		return "", err
	}

	voiceID, err := e.lookupVoice(ctx, voice)
	if err != nil {
		return "", err
	}
	logger.Debug().Str(xglog.FieldEvent, "voiceover.voice_resolved").Str("voice_id", voiceID).Msg("voice resolved")

	if err := e.convert(ctx, voiceID, text, dir, target); err != nil {
		return "", err
	}
	logger.Debug().Str(xglog.FieldEvent, "voiceover.created").Str(xglog.FieldPath, target).Msg("voiceover written")
	return target, nil
}

// lookupVoice resolves a voice name through the cache, collapsing concurrent
// searches for the same name into one API call. Misses are not cached.
func (e *ElevenLabs) lookupVoice(ctx context.Context, voice string) (string, error) {
	key := "voice:" + voice
	if e.cfg.VoiceCache != nil {
		if id, ok := e.cfg.VoiceCache.Get(ctx, key); ok {
			return id, nil
		}
	}
	ch := e.lookups.DoChan(voice, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.Timeout)
		defer cancel()
		id, err := e.searchVoice(lctx, voice)
		if err == nil && e.cfg.VoiceCache != nil {
			e.cfg.VoiceCache.Set(lctx, key, id, e.cfg.VoiceCacheTTL)
		}
		return id, err
	})
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (e *ElevenLabs) searchVoice(ctx context.Context, voice string) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", err
	}
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	endpoint := e.cfg.BaseURL + "/v2/voices?" + url.Values{"search": {voice}}.Encode()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("voice search: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("voice search: %s", apiError(resp))
	}

	var body voiceSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("voice search: decode response: %w", err)
	}
	if len(body.Voices) == 0 || body.Voices[0].VoiceID == "" {
		return "", fmt.Errorf("%w: %q", ErrVoiceNotFound, voice)
	}
	return body.Voices[0].VoiceID, nil
}

func (e *ElevenLabs) convert(ctx context.Context, voiceID, text, dir, target string) error {
	if err := e.limiter.Wait(ctx); err != nil {
		return err
	}
	reqCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	payload := ttsRequest{Text: text, ModelID: e.cfg.ModelID}
	if e.cfg.Stability > 0 || e.cfg.SimilarityBoost > 0 {
		payload.VoiceSettings = &voiceSettings{Stability: e.cfg.Stability, SimilarityBoost: e.cfg.SimilarityBoost}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v1/text-to-speech/%s?%s", e.cfg.BaseURL, url.PathEscape(voiceID),
		url.Values{"output_format": {e.cfg.OutputFormat}}.Encode())
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("xi-api-key", e.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("text-to-speech: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("text-to-speech: %s", apiError(resp))
	}

	pending, err := renameio.NewPendingFile(target, renameio.WithTempDir(dir), renameio.WithPermissions(0o600))
	if err != nil {
		return fmt.Errorf("create pending voiceover: %w", err)
	}
	defer func() { _ = pending.Cleanup() }()

	n, err := io.Copy(pending, resp.Body)
	if err != nil {
		return fmt.Errorf("text-to-speech: read audio: %w", err)
	}
	if n == 0 {
		return errors.New("text-to-speech: empty audio response")
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("commit voiceover: %w", err)
	}
	return nil
}

// apiError renders a non-2xx API response, including the detail message when
// the body carries one.
func apiError(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Detail any `json:"detail"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Detail != nil {
		return fmt.Sprintf("status %d: %v", resp.StatusCode, body.Detail)
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return fmt.Sprintf("status %d: %s", resp.StatusCode, msg)
	}
	return fmt.Sprintf("status %d", resp.StatusCode)
}
