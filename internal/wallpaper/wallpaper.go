// Package wallpaper applies a saved image as the desktop wallpaper through
// an external command such as feh or gsettings.
package wallpaper

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"

	"random-photo-backend/internal/models"

	"github.com/rs/zerolog/log"
)

// PathPlaceholder is replaced by the image file path in the command arguments
const PathPlaceholder = "{path}"

// Setter sets the device wallpaper
type Setter interface {
	// Supported reports whether the platform can set a wallpaper at all
	Supported() bool
	// Allowed reports whether setting the wallpaper is currently permitted
	Allowed() bool
	// Set applies the image bytes as wallpaper
	Set(ctx context.Context, image []byte) error
}

// CommandSetter runs a configured command with the image written to cacheDir.
// Calls are serialized and only the file of the applied wallpaper is kept.
type CommandSetter struct {
	command  []string
	allowed  bool
	cacheDir string
	lookPath func(string) (string, error)

	mu      sync.Mutex
	current string
}

// NewCommandSetter creates a command-based wallpaper setter
func NewCommandSetter(command []string, allowed bool, cacheDir string) *CommandSetter {
	if cacheDir == "" {
		cacheDir = filepath.Join(os.TempDir(), "random-photo-wallpaper")
	}
	return &CommandSetter{
		command:  command,
		allowed:  allowed,
		cacheDir: cacheDir,
		lookPath: exec.LookPath,
	}
}

func (s *CommandSetter) Supported() bool {
	if len(s.command) == 0 {
		return false
	}
	_, err := s.lookPath(s.command[0])
	return err == nil
}

func (s *CommandSetter) Allowed() bool {
	return s.allowed
}

func (s *CommandSetter) Set(ctx context.Context, image []byte) error {
	if !s.Supported() || !s.allowed {
		return fmt.Errorf("wallpaper not available: %w", models.ErrWallpaper)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := s.writeImage(image)
	if err != nil {
		return err
	}

	args := make([]string, 0, len(s.command)-1)
	for _, arg := range s.command[1:] {
		args = append(args, strings.ReplaceAll(arg, PathPlaceholder, path))
	}

	out, err := exec.CommandContext(ctx, s.command[0], args...).CombinedOutput()
	if err != nil {
		log.Error().
			Err(err).
			Str("command", s.command[0]).
			Str("output", strings.TrimSpace(string(out))).
			Msg("Wallpaper command failed")
		os.Remove(path)
		return fmt.Errorf("wallpaper command failed: %w: %v", models.ErrWallpaper, err)
	}

	if s.current != "" {
		os.Remove(s.current)
	}
	s.current = path
	return nil
}

// writeImage stores image in a fresh file under cacheDir
func (s *CommandSetter) writeImage(image []byte) (string, error) {
	if err := os.MkdirAll(s.cacheDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create wallpaper dir: %w: %v", models.ErrWallpaper, err)
	}

	f, err := os.CreateTemp(s.cacheDir, "wallpaper-*.jpg")
	if err != nil {
		return "", fmt.Errorf("failed to create wallpaper file: %w: %v", models.ErrWallpaper, err)
	}
	if _, err := f.Write(image); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write wallpaper file: %w: %v", models.ErrWallpaper, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write wallpaper file: %w: %v", models.ErrWallpaper, err)
	}
	return f.Name(), nil
}
