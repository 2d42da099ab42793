// Package importer turns completed gateway transfers into catalogued
// music: it locates each file on disk, groups files for album-aware
// import and delegates to the external beets process.
package importer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// errFoundFile stops the fallback walk early once a match is seen.
var errFoundFile = errors.New("file found")

// maxSearchDepth bounds the recursive fallback search under the
// download root.
const maxSearchDepth = 5

// ResolvePath maps a gateway-reported filename onto an existing file
// under the download root. Strategies, in order: exact relative join,
// peer-marker-stripped join, last-3-component join, last-2 join, bare
// filename join, then a bounded recursive search for the bare filename.
// The first candidate that exists on disk wins.
func ResolvePath(fs afero.Fs, downloadRoot, filename string) (string, error) {
	components := pathComponents(filename)
	if len(components) == 0 {
		return "", fmt.Errorf("empty filename")
	}

	var candidates []string

	candidates = append(candidates, filepath.Join(append([]string{downloadRoot}, components...)...))

	if strings.HasPrefix(components[0], "@@") && len(components) > 1 {
		candidates = append(candidates, filepath.Join(append([]string{downloadRoot}, components[1:]...)...))
	}

	for _, keep := range []int{3, 2, 1} {
		if len(components) > keep {
			tail := components[len(components)-keep:]
			candidates = append(candidates, filepath.Join(append([]string{downloadRoot}, tail...)...))
		}
	}

	for _, candidate := range candidates {
		if exists, _ := afero.Exists(fs, candidate); exists {
			return candidate, nil
		}
	}

	base := components[len(components)-1]
	if found := searchByName(fs, downloadRoot, base); found != "" {
		return found, nil
	}

	return "", fmt.Errorf("no file found under %s for %s", downloadRoot, filename)
}

// pathComponents splits a gateway path on either separator style,
// dropping empty segments and drive prefixes.
func pathComponents(filename string) []string {
	norm := strings.ReplaceAll(filename, "\\", "/")
	var components []string
	for _, part := range strings.Split(norm, "/") {
		part = strings.TrimSpace(part)
		if part == "" || strings.HasSuffix(part, ":") {
			continue
		}
		components = append(components, part)
	}
	return components
}

// searchByName walks the download root up to maxSearchDepth levels
// looking for a file with the given base name.
func searchByName(fs afero.Fs, root, name string) string {
	found := ""
	_ = afero.Walk(fs, root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		depth := len(strings.Split(filepath.ToSlash(rel), "/"))
		if info.IsDir() {
			if depth > maxSearchDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(info.Name(), name) {
			found = path
			return errFoundFile
		}
		return nil
	})
	return found
}
