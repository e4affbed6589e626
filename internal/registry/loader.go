package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"shardd/internal/common/fsutil"
	"shardd/pkg/types"
)

const (
	// CompleteMarker is written into a model directory once every artifact
	// of the allow-listed set has been transferred.
	CompleteMarker = ".shardd-complete"

	folderPrefix = "models--"
)

// ErrNoWeights is returned when a model directory holds no weight files.
var ErrNoWeights = errors.New("no safetensors weight files found")

// weightPatterns are tried in order; the second is kept for older exports.
var weightPatterns = []string{"model*.safetensors", "weight*.safetensors"}

// FolderName maps a model id to its cache folder name, e.g.
// "org/name" -> "models--org--name".
func FolderName(modelID string) string {
	return folderPrefix + strings.ReplaceAll(modelID, "/", "--")
}

// ModelID reverses FolderName. ok is false for non-model folders.
func ModelID(folder string) (string, bool) {
	if !strings.HasPrefix(folder, folderPrefix) {
		return "", false
	}
	rest := strings.TrimPrefix(folder, folderPrefix)
	if rest == "" {
		return "", false
	}
	return strings.ReplaceAll(rest, "--", "/"), true
}

// ModelDir returns the deterministic cache location for a model id.
func ModelDir(cacheDir, modelID string) string {
	return filepath.Join(cacheDir, FolderName(modelID))
}

// WeightFiles lists the weight files in dir (base names, sorted).
// It returns ErrNoWeights when none match.
func WeightFiles(dir string) ([]string, error) {
	for _, pat := range weightPatterns {
		matches, err := filepath.Glob(filepath.Join(dir, pat))
		if err != nil {
			return nil, fmt.Errorf("glob %s: %w", pat, err)
		}
		if len(matches) == 0 {
			continue
		}
		out := make([]string, 0, len(matches))
		for _, m := range matches {
			out = append(out, filepath.Base(m))
		}
		sort.Strings(out)
		return out, nil
	}
	return nil, ErrNoWeights
}

// HasWeights reports whether dir contains at least one weight file.
func HasWeights(dir string) bool {
	files, err := WeightFiles(dir)
	return err == nil && len(files) > 0
}

// IsComplete reports whether dir carries the completion marker.
func IsComplete(dir string) bool {
	return fsutil.PathExists(filepath.Join(dir, CompleteMarker))
}

// MarkComplete writes the completion marker into dir.
func MarkComplete(dir string) error {
	if err := os.WriteFile(filepath.Join(dir, CompleteMarker), nil, 0o644); err != nil {
		return fmt.Errorf("write marker: %w", err)
	}
	return nil
}

// LoadDir scans a cache directory for model folders that hold weight files.
// Folders without weights (e.g. a transfer that never got past config.json)
// are skipped.
func LoadDir(dir string) ([]types.Model, error) {
	base, err := fsutil.ExpandHome(dir)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("abs path: %w", err)
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dir: %w", err)
	}
	var models []types.Model
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		id, ok := ModelID(e.Name())
		if !ok {
			continue
		}
		p := filepath.Join(abs, e.Name())
		weights, err := WeightFiles(p)
		if err != nil {
			continue
		}
		size, err := fsutil.DirSize(p)
		if err != nil {
			return nil, err
		}
		models = append(models, types.Model{
			ID:          id,
			Path:        p,
			WeightFiles: weights,
			SizeBytes:   size,
			Complete:    IsComplete(p),
		})
	}
	return models, nil
}
