package engine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/zeebo/blake3"
)

// HashStageDir fingerprints every file under root (a node's stage
// directory) with blake3, skipping any path policy excludes from the
// checkpoint. Files are hashed in a fixed, sorted order so the digest is
// stable regardless of directory iteration order, and the digest covers
// both file contents and relative paths so a rename is detected even when
// content is unchanged.
func HashStageDir(root string, policy *ArtifactPolicy) (string, error) {
	var relPaths []string
	if err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if policy != nil && policy.ExcludedFromCheckpoint(rel) {
			return nil
		}
		relPaths = append(relPaths, rel)
		return nil
	}); err != nil {
		return "", fmt.Errorf("hash stage dir: %w", err)
	}

	sort.Strings(relPaths)

	h := blake3.New()
	for _, rel := range relPaths {
		b, err := os.ReadFile(filepath.Join(root, rel))
		if err != nil {
			return "", fmt.Errorf("hash stage dir: %w", err)
		}
		h.Write([]byte(rel))
		h.Write([]byte{0})
		h.Write(b)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
