// Package video records what the panel shows to a video file through
// ffmpeg, for demos and for checking transitions frame by frame.
package video

import (
	"context"
	"fmt"
	"image"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/ivlev/pihat/internal/clock"
	"github.com/ivlev/pihat/internal/surface"
)

// Recorder is a Surface that writes a constant frame rate stream of raw
// RGBA frames. Each output frame holds the last image drawn before its
// slot ended; slots with no draw repeat the previous frame.
type Recorder struct {
	fb    *surface.Framebuffer
	out   io.Writer
	fps   int
	clock clock.Clock

	mu      sync.Mutex
	start   time.Time
	pending []byte
	written int
	err     error
	closer  func() error
}

// NewRecorder records a w x h panel to out at fps frames per second.
func NewRecorder(out io.Writer, w, h, fps int, c clock.Clock) *Recorder {
	if c == nil {
		c = clock.System{}
	}
	if fps < 1 {
		fps = 1
	}
	return &Recorder{
		fb:    surface.NewFramebuffer(w, h),
		out:   out,
		fps:   fps,
		clock: c,
	}
}

// StartFFmpeg starts ffmpeg encoding to path and returns a Recorder
// feeding it. Close the recorder to finish the file.
func StartFFmpeg(ctx context.Context, path string, w, h, fps int, encoderName string, quality int, c clock.Clock) (*Recorder, error) {
	args := buildFFmpegArgs(w, h, fps, path, encoderName, quality)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}

	r := NewRecorder(stdin, w, h, fps, c)
	r.closer = func() error {
		stdin.Close()
		if err := cmd.Wait(); err != nil {
			return fmt.Errorf("ffmpeg wait error: %w", err)
		}
		return nil
	}
	return r, nil
}

func buildFFmpegArgs(w, h, fps int, videoPath string, encoderName string, quality int) []string {
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", w, h),
		"-framerate", fmt.Sprintf("%d", fps),
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-c:v", encoderName,
	}

	switch encoderName {
	case "h264_videotoolbox":
		bitrate := quality * 100
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", quality))
	case "h264_v4l2m2m":
		// The Pi hardware encoder only takes a bitrate.
		args = append(args, "-b:v", fmt.Sprintf("%dk", quality*100))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", quality), "-preset", "veryfast")
	}

	return append(args, videoPath)
}

func (r *Recorder) Bounds() image.Rectangle { return r.fb.Bounds() }

func (r *Recorder) Draw(frame image.Image, at image.Point) error {
	if err := r.fb.Draw(frame, at); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	now := r.clock.Now()
	if r.pending == nil {
		r.start = now
	}
	if err := r.flushTo(r.slot(now)); err != nil {
		return err
	}
	r.capture()
	return nil
}

// Frames counts frames written so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Close writes the pending frame, padding up to the current time, and
// waits for the encoder when there is one.
func (r *Recorder) Close() error {
	r.mu.Lock()
	err := r.err
	if err == nil && r.pending != nil {
		end := r.slot(r.clock.Now()) + 1
		err = r.flushTo(end)
	}
	closer := r.closer
	r.closer = nil
	r.mu.Unlock()

	if closer != nil {
		if cerr := closer(); err == nil {
			err = cerr
		}
	}
	return err
}

func (r *Recorder) slot(now time.Time) int {
	return int(now.Sub(r.start) * time.Duration(r.fps) / time.Second)
}

// flushTo writes the pending frame until n frames are out.
func (r *Recorder) flushTo(n int) error {
	for r.pending != nil && r.written < n {
		if err := writeRaw(r.out, r.pending); err != nil {
			r.err = fmt.Errorf("write raw error: %w", err)
			return r.err
		}
		r.written++
	}
	return nil
}

func (r *Recorder) capture() {
	r.fb.View(func(img *image.RGBA) {
		if r.pending == nil {
			r.pending = make([]byte, len(img.Pix))
		}
		copy(r.pending, img.Pix)
	})
}

func writeRaw(w io.Writer, pix []byte) error {
	_, err := w.Write(pix)
	return err
}
