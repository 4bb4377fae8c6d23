// Package shader loads precompiled ray-tracing shader binaries into an
// upload channel and reloads them when their files change.
package shader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// DefaultSlots are the shadow-ray stages, in slot order.
var DefaultSlots = []string{"ray_shadowVert", "ray_shadowFrag"}

// Extensions are tried in order when looking for a slot's binary.
var Extensions = []string{".spv", ".bytes"}

// Loader receives shader binaries. upload.Channel implements it.
type Loader interface {
	LoadShaderBinary(slot int, data []byte) error
}

// Find returns the path of the binary for slot name in dir.
func Find(dir, name string) (string, bool) {
	for _, ext := range Extensions {
		p := filepath.Join(dir, name+ext)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

// SlotOf maps a file path back to its slot index.
func SlotOf(slots []string, path string) (int, bool) {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	known := false
	for _, e := range Extensions {
		if strings.EqualFold(ext, e) {
			known = true
			break
		}
	}
	if !known {
		return 0, false
	}
	name := strings.TrimSuffix(base, ext)
	for i, s := range slots {
		if s == name {
			return i, true
		}
	}
	return 0, false
}

// LoadDir loads every slot found in dir and returns how many were loaded.
// Missing slots are skipped with a warning; read and load errors are
// combined into the returned error.
func LoadDir(dir string, slots []string, loader Loader, log *zap.Logger) (int, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var errs error
	loaded := 0
	for i, name := range slots {
		p, ok := Find(dir, name)
		if !ok {
			log.Warn("Shader binary not found, slot skipped",
				zap.String("slot", name),
				zap.String("dir", dir),
			)
			continue
		}
		if err := loadFile(p, i, loader); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("shader %s: %w", name, err))
			continue
		}
		log.Info("Shader loaded", zap.String("slot", name), zap.String("path", p))
		loaded++
	}
	return loaded, errs
}

// ErrEmptyBinary is returned for zero-length shader files.
var ErrEmptyBinary = errors.New("empty shader binary")

func loadFile(path string, slot int, loader Loader) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}
	if len(data) == 0 {
		return ErrEmptyBinary
	}
	return loader.LoadShaderBinary(slot, data)
}
