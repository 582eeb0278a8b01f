package transcript

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/anatolykoptev/go_digest/internal/engine"
)

// downloadAudio fetches a direct media URL into workDir, refusing
// files larger than the configured cap. Returns the local path and
// byte count.
func downloadAudio(ctx context.Context, mediaURL, workDir string) (string, int64, error) {
	resp, err := engine.RetryHTTP(ctx, engine.DefaultRetryConfig, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", engine.RandomUserAgent())
		req.Header.Set("Accept", "audio/*,*/*;q=0.9")
		return httpClient().Do(req)
	})
	if err != nil {
		return "", 0, fmt.Errorf("download audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("download audio: status %d", resp.StatusCode)
	}

	maxBytes := engine.Cfg.MaxAudioBytes
	if maxBytes <= 0 {
		maxBytes = 512 * 1024 * 1024
	}
	if resp.ContentLength > maxBytes {
		return "", 0, &Error{
			Kind: KindUnsupportedFormat,
			Err:  fmt.Errorf("audio file is %d bytes, cap is %d", resp.ContentLength, maxBytes),
		}
	}

	dest := filepath.Join(workDir, audioFileName(mediaURL))
	f, err := os.Create(dest)
	if err != nil {
		return "", 0, fmt.Errorf("create %s: %w", dest, err)
	}
	defer f.Close()

	n, err := io.Copy(f, io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		os.Remove(dest)
		return "", 0, fmt.Errorf("write audio: %w", err)
	}
	if n > maxBytes {
		os.Remove(dest)
		return "", 0, &Error{
			Kind: KindUnsupportedFormat,
			Err:  fmt.Errorf("audio stream exceeded %d byte cap", maxBytes),
		}
	}
	return dest, n, nil
}

// downloadPlatformAudio pulls the audio track of a platform video with
// yt-dlp. Used when platform captions are unavailable.
func downloadPlatformAudio(ctx context.Context, runner commandRunner, videoURL, workDir string) (string, int64, error) {
	out := filepath.Join(workDir, "platform-audio.m4a")
	res, err := runner.Run(ctx, "yt-dlp",
		"-f", "bestaudio[ext=m4a]/bestaudio",
		"--no-playlist",
		"-o", out,
		videoURL,
	)
	if err != nil {
		return "", 0, fmt.Errorf("yt-dlp failed: %w: %s", err, res.Stderr)
	}

	info, err := os.Stat(out)
	if err != nil {
		return "", 0, fmt.Errorf("yt-dlp completed but output missing: %w", err)
	}
	return out, info.Size(), nil
}

func audioFileName(mediaURL string) string {
	base := path.Base(strings.SplitN(mediaURL, "?", 2)[0])
	if base == "" || base == "." || base == "/" {
		return "audio.mp3"
	}
	return base
}
