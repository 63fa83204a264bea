// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package compose

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/mediamix/internal/fsutil"
	xglog "github.com/ManuGH/mediamix/internal/log"
	"github.com/ManuGH/mediamix/internal/metrics"
	"github.com/ManuGH/mediamix/internal/procgroup"
)

// FFmpegConfig configures the ffmpeg compositor.
type FFmpegConfig struct {
	FFmpegPath   string
	FFprobePath  string
	Timeout      time.Duration // per render
	ProbeTimeout time.Duration // per ffprobe call
	KillGrace    time.Duration // SIGTERM to SIGKILL
	Preset       string
	Threads      int
}

// Runner executes an external tool. The default runner starts it in its own
// process group and tears the group down when ctx ends.
type Runner func(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error

// FFmpeg implements Compositor with ffprobe for inspection and a single ffmpeg
// invocation for the render.
type FFmpeg struct {
	cfg    FFmpegConfig
	run    Runner
	logger zerolog.Logger
}

// NewFFmpeg returns the ffmpeg compositor. A nil runner uses the process group
// runner.
func NewFFmpeg(cfg FFmpegConfig, run Runner) *FFmpeg {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Minute
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 30 * time.Second
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = procgroup.DefaultGrace
	}
	f := &FFmpeg{cfg: cfg, run: run, logger: xglog.WithComponent("compose")}
	if f.run == nil {
		f.run = f.execRun
	}
	return f
}

func (f *FFmpeg) execRun(ctx context.Context, name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return procgroup.Run(ctx, cmd, f.cfg.KillGrace)
}

// Check verifies that both binaries are resolvable.
func (f *FFmpeg) Check(context.Context) error {
	for _, bin := range []string{f.cfg.FFmpegPath, f.cfg.FFprobePath} {
		if _, err := exec.LookPath(bin); err != nil {
			return fmt.Errorf("%s: %w", bin, err)
		}
	}
	return nil
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// MediaInfo is what ffprobe reports about one file.
type MediaInfo struct {
	Duration time.Duration
	Width    int
	Height   int
	HasVideo bool
	HasAudio bool
}

// Probe inspects a local media file.
func (f *FFmpeg) Probe(ctx context.Context, file string) (MediaInfo, error) {
	if err := fsutil.IsRegularFile(file); err != nil {
		return MediaInfo{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, f.cfg.ProbeTimeout)
	defer cancel()

	var stdout bytes.Buffer
	stderr := NewLineRing(16)
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration:stream=codec_type,width,height",
		"-of", "json",
		file,
	}
	err := f.run(ctx, f.cfg.FFprobePath, args, &stdout, stderr)
	metrics.RecordFFmpegRun("ffprobe", err)
	if err != nil {
		return MediaInfo{}, toolError("ffprobe", err, stderr)
	}
	return parseProbe(stdout.Bytes())
}

func parseProbe(raw []byte) (MediaInfo, error) {
	var out probeOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return MediaInfo{}, fmt.Errorf("parse ffprobe output: %w", err)
	}
	var info MediaInfo
	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if !info.HasVideo {
				info.Width, info.Height = s.Width, s.Height
			}
			info.HasVideo = true
		case "audio":
			info.HasAudio = true
		}
	}
	if out.Format.Duration != "" && out.Format.Duration != "N/A" {
		secs, err := strconv.ParseFloat(out.Format.Duration, 64)
		if err != nil {
			return MediaInfo{}, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
		}
		info.Duration = time.Duration(secs * float64(time.Second))
	}
	return info, nil
}

// Concatenate implements Compositor. Every file must carry a video stream with a
// known duration; the track's frame size is the first clip's.
func (f *FFmpeg) Concatenate(ctx context.Context, files []string) (VideoTrack, error) {
	if len(files) == 0 {
		return VideoTrack{}, errors.New("concatenate: no input files")
	}
	track := VideoTrack{Inputs: append([]string(nil), files...)}
	for i, file := range files {
		info, err := f.Probe(ctx, file)
		if err != nil {
			return VideoTrack{}, fmt.Errorf("concatenate: %s: %w", file, err)
		}
		if !info.HasVideo || info.Duration <= 0 {
			return VideoTrack{}, fmt.Errorf("concatenate: %s: no playable video stream", file)
		}
		if i == 0 {
			track.Width, track.Height = info.Width, info.Height
		}
		track.Duration += info.Duration
	}
	return track, nil
}

// MixAudio implements Compositor. Both inputs must carry audio.
func (f *FFmpeg) MixAudio(ctx context.Context, background string, volume float64, loopTo time.Duration, voiceover string) (MixedTrack, error) {
	if volume < 0 {
		return MixedTrack{}, fmt.Errorf("mix audio: negative volume %g", volume)
	}
	if loopTo <= 0 {
		return MixedTrack{}, fmt.Errorf("mix audio: loop duration must be positive, got %s", loopTo)
	}
	for _, file := range []string{background, voiceover} {
		info, err := f.Probe(ctx, file)
		if err != nil {
			return MixedTrack{}, fmt.Errorf("mix audio: %s: %w", file, err)
		}
		if !info.HasAudio {
			return MixedTrack{}, fmt.Errorf("mix audio: %s: no audio stream", file)
		}
	}
	return MixedTrack{Background: background, Volume: volume, Duration: loopTo, Voiceover: voiceover}, nil
}

// Render implements Compositor. The output appears under outputPath only after
// ffmpeg exits successfully.
func (f *FFmpeg) Render(ctx context.Context, video VideoTrack, mixed MixedTrack, outputPath, videoCodec, audioCodec string) error {
	partial := outputPath + ".part"
	args, err := BuildRenderArgs(RenderSpec{
		Video:      video,
		Mixed:      mixed,
		Output:     partial,
		VideoCodec: videoCodec,
		AudioCodec: audioCodec,
		Preset:     f.cfg.Preset,
		Threads:    f.cfg.Threads,
	})
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	start := time.Now()
	stderr := NewLineRing(64)
	err = f.run(ctx, f.cfg.FFmpegPath, args, io.Discard, stderr)
	metrics.RecordFFmpegRun("ffmpeg", err)
	if err != nil {
		_ = os.Remove(partial)
		return toolError("ffmpeg", err, stderr)
	}
	if err := os.Rename(partial, outputPath); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("render: commit output: %w", err)
	}
	logger := xglog.WithContext(ctx, f.logger)
	logger.Debug().
		Str(xglog.FieldEvent, "compose.rendered").
		Str(xglog.FieldPath, outputPath).
		Dur("duration", time.Since(start)).
		Msg("render finished")
	return nil
}

func toolError(tool string, err error, stderr *LineRing) error {
	lines := stderr.LastN(5)
	if len(lines) == 0 {
		return fmt.Errorf("%s: %w", tool, err)
	}
	return fmt.Errorf("%s: %w: %s", tool, err, strings.Join(lines, " | "))
}
