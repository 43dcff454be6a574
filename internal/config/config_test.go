package config

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/diagswitch/pkg/diag"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	r, err := Load(context.Background(), Options{})
	require.NoError(t, err)
	require.Equal(t, diag.Defaults(), r.Table())
}

func TestLoad_FileFormats(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name: "yaml",
			file: "diag.yaml",
			content: `
switches:
  rigidBody: true
  discreteDynamicsWorld: false
`,
		},
		{
			name: "toml",
			file: "diag.toml",
			content: `
[switches]
rigidBody = true
discreteDynamicsWorld = false
`,
		},
		{
			name: "hcl",
			file: "diag.hcl",
			content: `
switches = {
  rigidBody             = true
  discreteDynamicsWorld = false
}
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.content)
			r, err := Load(context.Background(), Options{Files: []string{path}})
			require.NoError(t, err)
			require.Equal(t, []diag.Key{diag.RigidBody}, r.Enabled())
		})
	}
}

func TestLoad_AllBaseline(t *testing.T) {
	path := writeFile(t, "all.yaml", `
all: true
switches:
  gjk: false
`)
	r, err := Load(context.Background(), Options{Files: []string{path}})
	require.NoError(t, err)
	require.False(t, r.MustGet(diag.GJK))
	require.True(t, r.MustGet(diag.Broadphase))
	require.Len(t, r.Enabled(), r.Len()-1)
}

func TestLoad_Precedence(t *testing.T) {
	first := writeFile(t, "first.yaml", "switches:\n  solver: true\n  islands: true\n")
	second := writeFile(t, "second.toml", "[switches]\nislands = false\nbroadphase = true\n")

	r, err := Load(context.Background(), Options{
		Files:     []string{first, second},
		EnvPrefix: DefaultEnvPrefix,
		Environ: []string{
			"HOME=/root",
			"DIAG_BROADPHASE=off",
			"DIAG_GJKDETECTOR=1",
		},
		Sets: []string{"gjkDetector=false", "boxShape"},
	})
	require.NoError(t, err)

	got := map[diag.Key]bool{}
	for k, v := range r.All() {
		got[k] = v
	}
	require.True(t, got[diag.Solver], "first file")
	require.False(t, got[diag.Islands], "second file overrides first")
	require.False(t, got[diag.Broadphase], "environment overrides files")
	require.False(t, got[diag.GJKDetector], "sets override environment")
	require.True(t, got[diag.BoxShape], "bare set means true")
	require.True(t, got[diag.DiscreteDynamicsWorld], "untouched default")

	// Table order is unaffected by overrides.
	require.Equal(t, slices.Collect(diag.MustNew(diag.Defaults()).Keys()), slices.Collect(r.Keys()))
}

func TestLoad_UnknownKeysFail(t *testing.T) {
	tests := []struct {
		name string
		opts func(t *testing.T) Options
	}{
		{
			name: "file",
			opts: func(t *testing.T) Options {
				return Options{Files: []string{writeFile(t, "typo.yaml", "switches:\n  rigidbody: true\n")}}
			},
		},
		{
			name: "environment",
			opts: func(t *testing.T) Options {
				return Options{EnvPrefix: "DIAG_", Environ: []string{"DIAG_RIGIDBDY=1"}}
			},
		},
		{
			name: "set",
			opts: func(t *testing.T) Options {
				return Options{Sets: []string{"broadPhase=true"}}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := Load(context.Background(), tt.opts(t))
			require.Nil(t, r)
			require.ErrorIs(t, err, diag.ErrConfig)
		})
	}
}

func TestLoad_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		opts func(t *testing.T) Options
	}{
		{
			name: "duplicate yaml key",
			opts: func(t *testing.T) Options {
				return Options{Files: []string{writeFile(t, "dup.yaml", "switches:\n  rigidBody: false\n  rigidBody: true\n")}}
			},
		},
		{
			name: "unknown yaml field",
			opts: func(t *testing.T) Options {
				return Options{Files: []string{writeFile(t, "extra.yaml", "switchs:\n  rigidBody: true\n")}}
			},
		},
		{
			name: "multiple yaml documents",
			opts: func(t *testing.T) Options {
				return Options{Files: []string{writeFile(t, "multi.yaml",
					"switches: {gjk: false}\n---\nswitches: {gjk: true, bogusKey: true}\n")}}
			},
		},
		{
			name: "ambiguous env key",
			opts: func(t *testing.T) Options {
				return Options{
					Defaults:  []diag.Switch{{Key: "gjk"}, {Key: "GJK"}},
					EnvPrefix: "DIAG_",
					Environ:   []string{"DIAG_GJK=1"},
				}
			},
		},
		{
			name: "unknown toml field",
			opts: func(t *testing.T) Options {
				return Options{Files: []string{writeFile(t, "extra.toml", "verbose = true\n")}}
			},
		},
		{
			name: "unknown hcl attribute",
			opts: func(t *testing.T) Options {
				return Options{Files: []string{writeFile(t, "extra.hcl", "verbose = true\n")}}
			},
		},
		{
			name: "unsupported extension",
			opts: func(t *testing.T) Options {
				return Options{Files: []string{writeFile(t, "diag.ini", "rigidBody=1\n")}}
			},
		},
		{
			name: "missing file",
			opts: func(t *testing.T) Options {
				return Options{Files: []string{filepath.Join(t.TempDir(), "missing.yaml")}}
			},
		},
		{
			name: "bad env value",
			opts: func(t *testing.T) Options {
				return Options{EnvPrefix: "DIAG_", Environ: []string{"DIAG_SOLVER=maybe"}}
			},
		},
		{
			name: "bad set value",
			opts: func(t *testing.T) Options {
				return Options{Sets: []string{"solver=2"}}
			},
		},
		{
			name: "empty set",
			opts: func(t *testing.T) Options {
				return Options{Sets: []string{"=true"}}
			},
		},
		{
			name: "duplicate default",
			opts: func(t *testing.T) Options {
				return Options{Defaults: []diag.Switch{{Key: "a"}, {Key: "a"}}}
			},
		},
		{
			name: "empty defaults",
			opts: func(t *testing.T) Options {
				return Options{Defaults: []diag.Switch{}}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), tt.opts(t))
			require.ErrorIs(t, err, diag.ErrConfig)
		})
	}
}

func TestLoad_EmptyDefaultsAllowed(t *testing.T) {
	r, err := Load(context.Background(), Options{Defaults: []diag.Switch{}, AllowEmpty: true})
	require.NoError(t, err)
	require.Zero(t, r.Len())
}

func TestLoad_EnvDisabledWithoutPrefix(t *testing.T) {
	r, err := Load(context.Background(), Options{Environ: []string{"DIAG_NOPE=1", "RIGIDBODY=1"}})
	require.NoError(t, err)
	require.False(t, r.MustGet(diag.RigidBody))
}

func TestLoad_CanceledContext(t *testing.T) {
	path := writeFile(t, "ok.yaml", "switches:\n  gjk: true\n")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Load(ctx, Options{Files: []string{path}})
	require.ErrorIs(t, err, context.Canceled)
}

func TestDecode_EmptyYAML(t *testing.T) {
	f, err := Decode("empty.yaml", FormatYAML, nil)
	require.NoError(t, err)
	require.Nil(t, f.All)
	require.Empty(t, f.Switches)
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{
		"a.yaml":     FormatYAML,
		"a.YML":      FormatYAML,
		"dir/b.toml": FormatTOML,
		"c.hcl":      FormatHCL,
	} {
		got, err := FormatOf(path)
		require.NoError(t, err, path)
		require.Equal(t, want, got, path)
	}
	_, err := FormatOf("d.json")
	require.Error(t, err)
}

func TestParseBool(t *testing.T) {
	for in, want := range map[string]bool{
		"1": true, "true": true, "TRUE": true, "on": true, "yes": true, " t ": true,
		"0": false, "false": false, "off": false, "No": false, "F": false,
	} {
		got, err := parseBool(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}
	_, err := parseBool("")
	require.Error(t, err)
}

func TestDecode_MultipleYAMLDocuments(t *testing.T) {
	_, err := Decode("multi.yaml", FormatYAML, []byte("switches: {gjk: false}\n---\nswitches: {gjk: true}\n"))
	require.EqualError(t, err, "multiple documents")
}

func TestLoad_EnvCaseFoldedKeys(t *testing.T) {
	r, err := Load(context.Background(), Options{
		Defaults:  []diag.Switch{{Key: "gjk"}, {Key: "GJK"}, {Key: "solver"}},
		EnvPrefix: "DIAG_",
		Environ:   []string{"DIAG_SOLVER=1"},
		Sets:      []string{"GJK=true"},
	})
	require.NoError(t, err)
	require.Equal(t, []diag.Key{"GJK", "solver"}, r.Enabled())

	_, err = Load(context.Background(), Options{
		Defaults:  []diag.Switch{{Key: "gjk"}, {Key: "GJK"}},
		EnvPrefix: "DIAG_",
		Environ:   []string{"DIAG_gjk=1"},
	})
	require.ErrorIs(t, err, diag.ErrConfig)
	require.ErrorContains(t, err, "ambiguous key")
}
