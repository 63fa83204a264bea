// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package compose

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// RenderSpec is everything BuildRenderArgs needs.
type RenderSpec struct {
	Video      VideoTrack
	Mixed      MixedTrack
	Output     string
	VideoCodec string
	AudioCodec string
	Preset     string // optional x264 preset
	Threads    int    // 0 lets ffmpeg decide
}

// BuildRenderArgs constructs the ffmpeg arguments for one render. Inputs are the
// clips in order, then the background with infinite looping, then the voiceover.
// Clips are scaled and padded to the first clip's frame size so the concat filter
// accepts mixed sources. The output is written as mp4 regardless of extension.
func BuildRenderArgs(spec RenderSpec) ([]string, error) {
	n := len(spec.Video.Inputs)
	switch {
	case n == 0:
		return nil, fmt.Errorf("no video inputs")
	case spec.Mixed.Background == "" || spec.Mixed.Voiceover == "":
		return nil, fmt.Errorf("missing audio input")
	case spec.Output == "":
		return nil, fmt.Errorf("missing output path")
	case spec.Video.Duration <= 0:
		return nil, fmt.Errorf("video duration unknown")
	case spec.VideoCodec == "" || spec.AudioCodec == "":
		return nil, fmt.Errorf("missing codec")
	}

	duration := spec.Mixed.Duration
	if duration <= 0 || duration > spec.Video.Duration {
		duration = spec.Video.Duration
	}
	secs := formatSeconds(duration)

	args := []string{"-hide_banner", "-nostdin", "-y", "-loglevel", "error"}
	for _, in := range spec.Video.Inputs {
		args = append(args, "-i", in)
	}
	args = append(args,
		"-stream_loop", "-1", "-i", spec.Mixed.Background,
		"-i", spec.Mixed.Voiceover,
	)

	var fc strings.Builder
	for i := 0; i < n; i++ {
		if spec.Video.Width > 0 && spec.Video.Height > 0 {
			fmt.Fprintf(&fc, "[%d:v]scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1[v%d];",
				i, spec.Video.Width, spec.Video.Height, spec.Video.Width, spec.Video.Height, i)
		} else {
			fmt.Fprintf(&fc, "[%d:v]setsar=1[v%d];", i, i)
		}
	}
	for i := 0; i < n; i++ {
		fmt.Fprintf(&fc, "[v%d]", i)
	}
	fmt.Fprintf(&fc, "concat=n=%d:v=1:a=0[v];", n)
	fmt.Fprintf(&fc, "[%d:a]volume=%s,atrim=0:%s,asetpts=PTS-STARTPTS[bg];", n,
		strconv.FormatFloat(spec.Mixed.Volume, 'f', -1, 64), secs)
	fmt.Fprintf(&fc, "[bg][%d:a]amix=inputs=2:duration=first:dropout_transition=0:normalize=0[a]", n+1)

	args = append(args,
		"-filter_complex", fc.String(),
		"-map", "[v]", "-map", "[a]",
		"-c:v", spec.VideoCodec,
	)
	if spec.Preset != "" {
		args = append(args, "-preset", spec.Preset)
	}
	args = append(args, "-c:a", spec.AudioCodec)
	if spec.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(spec.Threads))
	}
	args = append(args,
		"-t", secs,
		"-movflags", "+faststart",
		"-f", "mp4",
		spec.Output,
	)
	return args, nil
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
