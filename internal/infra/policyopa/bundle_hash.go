package policyopa

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
)

type policyFile struct {
	Path   string `json:"path"`
	SHA256 string `json:"sha256"`
}

// ComputeBundleHashFromPath digests the rego modules and data documents of a
// bundle directory. Editor leftovers, hidden entries and vendored trees do
// not affect the result.
func ComputeBundleHashFromPath(bundlePath string) (string, error) {
	return ComputeBundleHashFromFS(os.DirFS(bundlePath))
}

func ComputeBundleHashFromFS(fsys fs.FS) (string, error) {
	var files []policyFile
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if p == "." {
			return nil
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") || name == "vendor" || name == "__MACOSX" {
				return fs.SkipDir
			}
			return nil
		}
		if !policyRelevant(name) {
			return nil
		}
		data, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}
		files = append(files, policyFile{Path: path.Clean(p), SHA256: sha256Hex(data)})
		return nil
	})
	if err != nil {
		return "", err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	digest, err := json.Marshal(files)
	if err != nil {
		return "", err
	}
	return sha256Hex(digest), nil
}

func policyRelevant(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	return strings.HasSuffix(name, ".rego") || name == "data.json" || name == "data.yaml"
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
