package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2/hclsimple"
	yaml "gopkg.in/yaml.v3"

	"github.com/715d/diagswitch/pkg/diag"
)

// File is the decoded form of a configuration file. The same schema is
// used by every format:
//
//	all: false            # optional baseline applied to every switch first
//	switches:
//	  rigidBody: true
//	  gjkDetector: true
type File struct {
	// All, when set, is applied to every switch before Switches.
	All *bool `yaml:"all" toml:"all" hcl:"all,optional"`

	// Switches maps keys to values.
	Switches map[string]bool `yaml:"switches" toml:"switches" hcl:"switches,optional"`

	path string
}

// Format identifies a configuration file syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatHCL  Format = "hcl"
)

// FormatOf picks a format from the file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	case ".hcl":
		return FormatHCL, nil
	}
	return "", fmt.Errorf("unsupported config file extension %q", filepath.Ext(path))
}

// ReadFile reads and decodes a configuration file. Decoding failures are
// reported as *diag.ConfigError.
func ReadFile(path string) (*File, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, &diag.ConfigError{Reason: "reading " + path, Err: err}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &diag.ConfigError{Reason: "reading " + path, Err: err}
	}
	f, err := Decode(path, format, data)
	if err != nil {
		return nil, &diag.ConfigError{Reason: "decoding " + path, Err: err}
	}
	return f, nil
}

// Decode parses data in the given format. name is used in diagnostics.
func Decode(name string, format Format, data []byte) (*File, error) {
	f := &File{path: name}
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(f); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, err
		}
		var extra yaml.Node
		if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
			return nil, errors.New("multiple documents")
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), f)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown fields: %v", undecoded)
		}
	case FormatHCL:
		// hclsimple picks native syntax from the suffix.
		filename := name
		if !strings.HasSuffix(filename, ".hcl") {
			filename += ".hcl"
		}
		if err := hclsimple.Decode(filename, data, nil, f); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
	return f, nil
}

// sorted returns the switches ordered by key so that errors are reported
// deterministically.
func (f *File) sorted() []diag.Switch {
	out := make([]diag.Switch, 0, len(f.Switches))
	for k, v := range f.Switches {
		out = append(out, diag.Switch{Key: diag.Key(k), Value: v})
	}
	slices.SortFunc(out, func(a, b diag.Switch) int { return strings.Compare(string(a.Key), string(b.Key)) })
	return out
}
