package sink

import (
	"fmt"
	"image/png"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"

	"hackrf-receiver/internal/pal"
)

// FrameRate is the nominal PAL frame rate.
const FrameRate = pal.LineFrequency / pal.LinesPerFrame

// FFplay represents the FFplay video player process and its input pipe.
type FFplay struct {
	Pipe io.WriteCloser
	Cmd  *exec.Cmd
}

// StartFFplay launches FFplay configured for our raw grayscale video stream.
func StartFFplay(title string) (*FFplay, error) {
	ffplayPath, err := exec.LookPath("ffplay")
	if err != nil {
		return nil, fmt.Errorf("ffplay not found in your PATH")
	}

	args := []string{
		"-f", "rawvideo",
		"-pixel_format", "gray",
		"-video_size", fmt.Sprintf("%dx%d", pal.FrameWidth, pal.FrameHeight),
		"-framerate", fmt.Sprintf("%f", FrameRate),
		"-i", "-", // Read from stdin
		"-window_title", title,
		"-fflags", "nobuffer",
		"-flags", "low_delay",
	}

	cmd := exec.Command(ffplayPath, args...)
	stdinPipe, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	cmd.Stderr = os.Stderr // Show ffplay errors in our console

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	log.Println("FFplay process started. Video output should appear in a new window.")
	return &FFplay{Pipe: stdinPipe, Cmd: cmd}, nil
}

// WriteFrame sends one frame's pixels down the pipe.
func (f *FFplay) WriteFrame(frame *pal.Frame) error {
	if _, err := f.Pipe.Write(frame.Pix); err != nil {
		return fmt.Errorf("ffplay pipe: %w", err)
	}
	return nil
}

// Close terminates the FFplay process.
func (f *FFplay) Close() error {
	f.Pipe.Close()
	if err := f.Cmd.Process.Kill(); err != nil {
		return err
	}
	f.Cmd.Wait()
	return nil
}

// Snapshots writes every Nth frame to a PNG file in Dir.
type Snapshots struct {
	Dir   string
	Every int
}

// NewSnapshots creates dir if needed. every values below 1 save every frame.
func NewSnapshots(dir string, every int) (*Snapshots, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	return &Snapshots{Dir: dir, Every: max(every, 1)}, nil
}

// Path returns the file name used for frame index.
func (s *Snapshots) Path(index uint64) string {
	return filepath.Join(s.Dir, fmt.Sprintf("frame-%06d.png", index))
}

// WriteFrame saves frame if its index is a multiple of Every.
func (s *Snapshots) WriteFrame(frame *pal.Frame) error {
	if frame.Index%uint64(s.Every) != 0 {
		return nil
	}
	file, err := os.Create(s.Path(frame.Index))
	if err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}
	if err := png.Encode(file, frame.Image()); err != nil {
		file.Close()
		return fmt.Errorf("snapshot: %w", err)
	}
	return file.Close()
}

// Close is a no-op.
func (s *Snapshots) Close() error {
	return nil
}
