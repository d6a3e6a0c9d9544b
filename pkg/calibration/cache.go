package calibration

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const cacheVersion = 1

type cacheFile struct {
	Version int    `yaml:"version"`
	Result  Result `yaml:"result"`
}

// SaveResult writes r to path as YAML, creating parent directories.
func SaveResult(path string, r Result) error {
	data, err := yaml.Marshal(cacheFile{Version: cacheVersion, Result: r})
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create calibration dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write calibration: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadResult reads a Result saved by SaveResult. The homography is
// re-validated and its inverse recomputed; a degenerate cache is a
// CalibrationError.
func LoadResult(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read calibration: %w", err)
	}
	var f cacheFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Result{}, fmt.Errorf("parse calibration %s: %w", path, err)
	}
	if f.Version != cacheVersion {
		return Result{}, calibrationErrorf("unsupported cache version %d", f.Version)
	}

	r := f.Result
	inv, err := r.Homography.Inverse()
	if err != nil {
		return Result{}, &CalibrationError{Reason: "cached homography is degenerate", Err: err}
	}
	r.Inverse = inv
	r.Mode = ModeCache
	return r, nil
}
