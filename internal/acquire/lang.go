package acquire

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

type langSpec struct {
	name     string
	depFiles []string
	mains    []string
}

// Language detection follows the dependency manifest at the workspace root.
var languages = []langSpec{
	{"python", []string{"requirements.txt", "pyproject.toml", "Pipfile"}, []string{"app.py", "main.py", "server.py", "api.py"}},
	{"nodejs", []string{"package.json"}, []string{"server.js", "app.js", "index.js", "main.js"}},
	{"golang", []string{"go.mod"}, []string{"main.go"}},
	{"dart", []string{"pubspec.yaml"}, []string{"bin/main.dart", "lib/main.dart", "main.dart"}},
}

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// verifyStructure checks the snapshot for a dependency manifest and a
// recognizable entry point. The returned main file path is relative to the
// workspace root, slash-separated.
func verifyStructure(dir string) (language, mainFile string, err error) {
	for _, l := range languages {
		for _, dep := range l.depFiles {
			if _, statErr := os.Stat(filepath.Join(dir, dep)); statErr != nil {
				continue
			}
			main, found := findMainFile(dir, l.mains)
			if !found {
				return "", "", fmt.Errorf("%s project without a recognizable entry point", l.name)
			}
			return l.name, main, nil
		}
	}
	return "", "", errors.New("no dependency manifest found (requirements.txt, package.json, go.mod, pubspec.yaml)")
}

func findMainFile(dir string, candidates []string) (string, bool) {
	for _, c := range candidates {
		if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(c))); err == nil {
			return c, true
		}
	}

	// Fall back to the first candidate base name anywhere in the tree.
	bases := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		bases[filepath.Base(c)] = true
	}
	var found string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if bases[d.Name()] {
			rel, relErr := filepath.Rel(dir, path)
			if relErr == nil {
				found = filepath.ToSlash(rel)
				return fs.SkipAll
			}
		}
		return nil
	})
	return found, found != ""
}
