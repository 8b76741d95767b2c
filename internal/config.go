package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// FileConfig is the optional YAML config file. Unset fields keep the
// current option value; CLI flags are applied after it.
type FileConfig struct {
	Mode              string   `yaml:"mode"`
	IgnoreCase        *bool    `yaml:"ignore_case"`
	Extensions        []string `yaml:"extensions"`
	ExcludeExtensions []string `yaml:"exclude_extensions"`
	Ignore            []string `yaml:"ignore"`
	MinSize           string   `yaml:"min_size"`
	MaxSize           string   `yaml:"max_size"`
	Recursive         *bool    `yaml:"recursive"`
	MaxDepth          *int     `yaml:"max_depth"`
	SkipBinary        *bool    `yaml:"skip_binary"`
	Hidden            *bool    `yaml:"hidden"`
	Archives          *bool    `yaml:"archives"`
	Context           *int     `yaml:"context"`
	MaxPerFile        *int     `yaml:"max_per_file"`
	MaxCount          *int     `yaml:"max_count"`
	Threads           *int     `yaml:"threads"`
	MmapThreshold     string   `yaml:"mmap_threshold"`
}

// ConfigPaths lists the implicit config locations in lookup order.
func ConfigPaths() []string {
	var paths []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "rfgrep", "config.yaml"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "rfgrep", "config.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".rfgrep.yaml"))
	}
	return append(paths, ".rfgrep.yaml")
}

// LoadConfig reads path, or the first existing implicit location when path
// is empty. No file at an implicit location is not an error.
func LoadConfig(path string) (*FileConfig, string, error) {
	if path == "" {
		for _, p := range ConfigPaths() {
			if _, err := os.Stat(p); err == nil {
				path = p
				break
			}
		}
		if path == "" {
			return &FileConfig{}, "", nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("failed to read config file: %w", err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, path, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	logrus.WithField("config", path).Debug("config file loaded")
	return &fc, path, nil
}

// Apply merges the file values into o.
func (fc *FileConfig) Apply(o *SearchOptions) error {
	var result *multierror.Error
	if fc.Mode != "" {
		m, err := ParseMode(fc.Mode)
		if err != nil {
			result = multierror.Append(result, &ConfigError{Field: "mode", Err: err})
		}
		o.Mode = m
	}
	setBool(&o.IgnoreCase, fc.IgnoreCase)
	setBool(&o.Recursive, fc.Recursive)
	setBool(&o.ShowHidden, fc.Hidden)
	setBool(&o.Archives, fc.Archives)
	setBool(&o.SkipBinary, fc.SkipBinary)
	if len(fc.Extensions) > 0 {
		o.Extensions = fc.Extensions
	}
	if len(fc.ExcludeExtensions) > 0 {
		o.ExcludeExtensions = fc.ExcludeExtensions
	}
	if len(fc.Ignore) > 0 {
		o.IgnorePatterns = fc.Ignore
	}
	setInt(&o.MaxDepth, fc.MaxDepth)
	setInt(&o.ContextLines, fc.Context)
	setInt(&o.MaxMatchesPerFile, fc.MaxPerFile)
	setInt(&o.MaxMatchesTotal, fc.MaxCount)
	setInt(&o.Workers, fc.Threads)

	for _, s := range []struct {
		field string
		raw   string
		dst   *int64
	}{
		{"min_size", fc.MinSize, &o.MinSize},
		{"max_size", fc.MaxSize, &o.MaxSize},
		{"mmap_threshold", fc.MmapThreshold, &o.MmapThreshold},
	} {
		if s.raw == "" {
			continue
		}
		n, err := ParseSize(s.raw)
		if err != nil {
			result = multierror.Append(result, &ConfigError{Field: s.field, Err: err})
			continue
		}
		*s.dst = n
	}
	return result.ErrorOrNil()
}

// ParseSize accepts plain byte counts and human sizes such as "10MB" or "1.5GiB".
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w: size %q: %v", ErrInvalidBounds, s, err)
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("%w: size %q too large", ErrInvalidBounds, s)
	}
	return int64(n), nil
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}
