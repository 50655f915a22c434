package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"yoyaku/internal/formconfig"
)

// FormFile is one form configuration found in the forms directory.
// Data is always JSON; YAML files are converted on load.
type FormFile struct {
	ID      string
	Path    string
	Data    []byte
	ModTime time.Time
}

// LoadFormFile reads a .json, .yaml or .yml form file. The form id is the file
// name without its extension.
func LoadFormFile(path string) (FormFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FormFile{}, fmt.Errorf("read form file: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return FormFile{}, fmt.Errorf("stat form file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		if data, err = formconfig.YAMLToJSON(data); err != nil {
			return FormFile{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	} else if _, err = formconfig.Parse(data); err != nil {
		return FormFile{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	return FormFile{
		ID:      strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:    path,
		Data:    data,
		ModTime: info.ModTime(),
	}, nil
}

func isFormFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".yaml", ".yml":
		return !strings.HasPrefix(name, ".")
	}
	return false
}

// formFiles lists form files in dir with their modification times.
func formFiles(dir string) (map[string]time.Time, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make(map[string]time.Time, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isFormFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out[filepath.Join(dir, e.Name())] = info.ModTime()
	}
	return out, nil
}

// WatchForms reloads form files in dir on change and calls onUpdate with each
// changed file. It performs an initial load of every file before entering the
// watch loop. Files that fail to parse are reported through onError and retried
// on their next modification.
func WatchForms(ctx context.Context, dir string, interval time.Duration, onUpdate func(FormFile), onError func(path string, err error)) error {
	if dir == "" {
		dir = "forms"
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}

	files, err := formFiles(dir)
	if err != nil {
		return err
	}

	seen := make(map[string]time.Time, len(files))
	scan := func(files map[string]time.Time) {
		paths := make([]string, 0, len(files))
		for p := range files {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		for _, p := range paths {
			mod := files[p]
			if last, ok := seen[p]; ok && !mod.After(last) {
				continue
			}
			seen[p] = mod
			ff, err := LoadFormFile(p)
			if err != nil {
				if onError != nil {
					onError(p, err)
				}
				continue
			}
			if onUpdate != nil {
				onUpdate(ff)
			}
		}
	}
	scan(files)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				files, err := formFiles(dir)
				if err != nil {
					continue // transient errors
				}
				scan(files)
			}
		}
	}()

	return nil
}
