package history

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	"golang.org/x/exp/slices"
)

// Load decodes a history from YAML or JSON.
func Load(r io.Reader) (*History, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading history")
	}
	var h History
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, errors.Wrap(err, "decoding history")
	}
	return &h, nil
}

// LoadFile decodes the history stored at path. When the history has no
// ID, the file name without extension is used.
func LoadFile(path string) (*History, error) {
	f, err := os.Open(os.ExpandEnv(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	h, err := Load(f)
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s", path)
	}
	if h.ID == "" {
		base := filepath.Base(path)
		h.ID = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return h, nil
}

// IsHistoryFile reports whether path has an extension LoadDir reads.
func IsHistoryFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadDir decodes every history file in dir, in lexical order. It is
// not recursive.
func LoadDir(dir string) ([]*History, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !IsHistoryFile(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	hs := make([]*History, 0, len(names))
	for _, name := range names {
		h, err := LoadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		hs = append(hs, h)
	}
	return hs, nil
}

// Save encodes h as YAML.
func Save(w io.Writer, h *History) error {
	data, err := yaml.Marshal(h)
	if err != nil {
		return errors.Wrap(err, "encoding history")
	}
	_, err = w.Write(data)
	return err
}
