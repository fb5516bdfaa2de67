package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bakkerme/atomsplit/internal/config"
	"github.com/bakkerme/atomsplit/internal/core"
)

// Encode writes run to w as JSON or YAML.
func Encode(w io.Writer, run *core.Run, format string) error {
	switch strings.ToLower(format) {
	case "", config.FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case config.FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(run); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

// Save writes run to path, replacing any previous content.
func Save(path string, run *core.Run, format string) error {
	if path == "" {
		return fmt.Errorf("snapshot path is required")
	}
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot directory: %w", err)
		}
	}
	var buf bytes.Buffer
	if err := Encode(&buf, run, format); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// Load reads a run written by Save. The format is chosen by extension:
// .yaml and .yml are YAML, anything else JSON.
func Load(path string) (*core.Run, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var run core.Run
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &run)
	default:
		err = json.Unmarshal(data, &run)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &run, nil
}
