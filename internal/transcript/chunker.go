package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
)

// chunkSafetyFactor keeps each chunk's estimated size comfortably under
// the service byte limit, absorbing bitrate variance across the file.
const chunkSafetyFactor = 0.95

// ChunkWindow is one time-bounded slice of the source audio.
type ChunkWindow struct {
	Index int
	Start float64 // seconds
	End   float64
}

func (w ChunkWindow) Duration() float64 { return w.End - w.Start }

// ChunkPlan divides an oversized audio file into equal-length,
// non-overlapping, gap-free windows whose estimated sizes fit under
// the transcription service's byte limit.
type ChunkPlan struct {
	TotalDuration float64
	TotalBytes    int64
	ChunkCount    int
	ChunkDuration float64
	Windows       []ChunkWindow
}

// PlanChunks computes the minimal chunk count for the given file. The
// windows partition [0, totalDuration] exactly: window i starts where
// window i-1 ends and the last window ends at totalDuration.
func PlanChunks(totalBytes int64, totalDuration float64, byteLimit int64) (*ChunkPlan, error) {
	if totalBytes <= 0 || totalDuration <= 0 || byteLimit <= 0 {
		return nil, fmt.Errorf("invalid chunk inputs: bytes=%d duration=%.2f limit=%d", totalBytes, totalDuration, byteLimit)
	}

	bytesPerSecond := float64(totalBytes) / totalDuration
	maxChunkSeconds := chunkSafetyFactor * float64(byteLimit) / bytesPerSecond
	if maxChunkSeconds <= 0 {
		return nil, fmt.Errorf("byte limit %d too small for bitrate %.0f B/s", byteLimit, bytesPerSecond)
	}

	count := int(math.Ceil(totalDuration / maxChunkSeconds))
	if count < 1 {
		count = 1
	}

	chunkDuration := totalDuration / float64(count)
	windows := make([]ChunkWindow, count)
	for i := 0; i < count; i++ {
		windows[i] = ChunkWindow{
			Index: i,
			Start: float64(i) * chunkDuration,
			End:   float64(i+1) * chunkDuration,
		}
	}
	// Pin the last boundary so rounding never leaves a tail gap.
	windows[count-1].End = totalDuration

	return &ChunkPlan{
		TotalDuration: totalDuration,
		TotalBytes:    totalBytes,
		ChunkCount:    count,
		ChunkDuration: chunkDuration,
		Windows:       windows,
	}, nil
}

// audioProbe is what ffprobe reports about a media file.
type audioProbe struct {
	Duration float64 // seconds
	Size     int64   // bytes
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
		Size     string `json:"size"`
	} `json:"format"`
}

// probeAudio reads duration and size via ffprobe.
func probeAudio(ctx context.Context, runner commandRunner, path string) (*audioProbe, error) {
	res, err := runner.Run(ctx, "ffprobe",
		"-v", "error",
		"-show_entries", "format=duration,size",
		"-of", "json",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe %s: %w: %s", path, err, res.Stderr)
	}

	var out ffprobeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	duration, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return nil, fmt.Errorf("parse duration %q: %w", out.Format.Duration, err)
	}
	size, err := strconv.ParseInt(out.Format.Size, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse size %q: %w", out.Format.Size, err)
	}
	return &audioProbe{Duration: duration, Size: size}, nil
}

// splitAudio cuts the source file along the plan's boundaries with
// ffmpeg stream copy. -ss before -i seeks on the input, so with copy
// the actual cut lands on the nearest packet boundary; for audio
// streams that is tens of milliseconds at most, and the stitch trims
// any spill past a window edge. Returns one file path per window, in
// order.
func splitAudio(ctx context.Context, runner commandRunner, srcPath, workDir string, plan *ChunkPlan) ([]string, error) {
	ext := filepath.Ext(srcPath)
	if ext == "" {
		ext = ".mp3"
	}

	paths := make([]string, len(plan.Windows))
	for _, w := range plan.Windows {
		out := filepath.Join(workDir, fmt.Sprintf("chunk-%03d%s", w.Index, ext))
		res, err := runner.Run(ctx, "ffmpeg",
			"-hide_banner",
			"-nostdin",
			"-y",
			"-ss", formatSeconds(w.Start),
			"-t", formatSeconds(w.Duration()),
			"-i", srcPath,
			"-vn",
			"-c", "copy",
			out,
		)
		if err != nil {
			return nil, fmt.Errorf("ffmpeg split chunk %d: %w: %s", w.Index, err, res.Stderr)
		}
		paths[w.Index] = out
	}
	return paths, nil
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}
