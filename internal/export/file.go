package export

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/blockcad/internal/config"
	"github.com/hpungsan/blockcad/internal/errors"
	"github.com/hpungsan/blockcad/sdk"
)

// Output describes a file written by ExportSTLFile or SaveSceneFile.
type Output struct {
	Path      string `json:"path"`
	Format    string `json:"format"`
	Blocks    int    `json:"blocks"`
	Triangles uint32 `json:"triangles,omitempty"`
	Bytes     int64  `json:"bytes"`
}

// ExportSTLFile validates path and writes blocks as binary STL, replacing any
// existing file atomically.
func ExportSTLFile(path string, blocks []sdk.Block, cfg *config.Config) (*Output, error) {
	if err := ValidatePath(path, PathCheckWrite, STLExt, cfg); err != nil {
		return nil, err
	}
	out := &Output{Path: path, Format: "stl", Blocks: len(blocks)}
	size, err := writeAtomic(path, func(f *os.File) error {
		n, err := WriteSTL(f, blocks)
		out.Triangles = n
		return err
	})
	if err != nil {
		return nil, err
	}
	out.Bytes = size
	return out, nil
}

// SaveSceneFile validates path and writes scene as a raw scene file.
func SaveSceneFile(path string, scene Scene, cfg *config.Config) (*Output, error) {
	if err := ValidatePath(path, PathCheckWrite, SceneExt, cfg); err != nil {
		return nil, err
	}
	if scene.Header.SavedAt == 0 {
		scene.Header.SavedAt = time.Now().Unix()
	}
	size, err := writeAtomic(path, func(f *os.File) error {
		return WriteScene(f, scene)
	})
	if err != nil {
		return nil, err
	}
	return &Output{Path: path, Format: "scene", Blocks: len(scene.Blocks), Bytes: size}, nil
}

// LoadSceneFile validates path, reads a raw scene file, and rejects scenes that
// break store invariants.
func LoadSceneFile(path string, cfg *config.Config) (Scene, error) {
	if err := ValidatePath(path, PathCheckRead, SceneExt, cfg); err != nil {
		return Scene{}, err
	}
	f, err := openNoFollow(path, os.O_RDONLY, 0)
	if err != nil {
		return Scene{}, err
	}
	defer f.Close()

	scene, err := ReadScene(f)
	if err != nil {
		return Scene{}, errors.NewInvalidRequest(fmt.Sprintf("invalid scene file %s: %v", path, err))
	}
	if err := scene.Validate(); err != nil {
		return Scene{}, errors.NewInvalidRequest(fmt.Sprintf("invalid scene file %s: %v", path, err))
	}
	return scene, nil
}

// DefaultPath returns ~/.blockcad/exports/<name>-<timestamp><ext>, creating the
// exports directory if needed.
func DefaultPath(name, ext string, now time.Time) (string, error) {
	dir, err := DefaultExportsDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to create exports directory: %w", err))
	}
	filename := fmt.Sprintf("%s-%s%s", SanitizeForFilename(name), now.Format("2006-01-02T150405"), ext)
	return filepath.Join(dir, filename), nil
}

// writeAtomic writes through a temp file next to path and renames it into place,
// so a failed write never clobbers an existing file. It returns the final size.
func writeAtomic(path string, write func(f *os.File) error) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0600)
	if err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := write(file); err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return 0, errors.NewInternal(err)
	}
	info, err := file.Stat()
	if err != nil {
		return 0, errors.NewInternal(err)
	}

	// Close before rename (required on Windows).
	if err := file.Close(); err != nil {
		return 0, errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink planted at the destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return 0, errors.NewInvalidRequest("path must not be a symlink")
	}

	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return 0, errors.NewInvalidRequest("export destination already exists; choose a new path on Windows")
			}
		}
		return 0, errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return info.Size(), nil
}
