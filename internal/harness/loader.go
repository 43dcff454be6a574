package harness

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"

	yaml "gopkg.in/yaml.v3"

	"github.com/stretchr/testify/require"

	"github.com/715d/diagswitch/pkg/keycheck"
)

// LoaderConfig selects the test module and build tags to load.
type LoaderConfig struct {
	Dir       string
	BuildTags []string
}

// offlineEnv pins the go command to the test module. Test modules have no
// requirements, so nothing may be downloaded or resolved from a workspace.
var offlineEnv = map[string]string{
	"GOFLAGS": "-mod=mod",
	"GOPROXY": "off",
	"GOWORK":  "off",
}

// LoadPackages loads every package of the test module in cfg.Dir.
func LoadPackages(t *testing.T, cfg *LoaderConfig) []*packages.Package {
	t.Helper()

	env := os.Environ()
	for name, value := range offlineEnv {
		env = setEnv(env, name, value)
	}

	t.Logf("loading test module %s (tags %v)", cfg.Dir, cfg.BuildTags)
	pkgs, err := keycheck.LoadPackages(t.Context(), keycheck.LoaderOptions{
		BuildTags: cfg.BuildTags,
		Dir:       cfg.Dir,
		Env:       env,
	})
	require.NoError(t, err)
	return pkgs
}

// LoadTestCase reads dir/expected.yaml. The case's Dir is dir relative to
// root, or its base name when root is empty or unrelated.
func LoadTestCase(t *testing.T, dir, root string) *TestCase {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, "expected.yaml"))
	require.NoError(t, err)

	var tc TestCase
	require.NoError(t, yaml.Unmarshal(data, &tc))

	tc.Dir = filepath.Base(dir)
	if rel, err := filepath.Rel(root, dir); root != "" && err == nil {
		tc.Dir = rel
	}
	return &tc
}

// setEnv returns env with name set to value, replacing any earlier entry.
func setEnv(env []string, name, value string) []string {
	prefix := name + "="
	env = slices.DeleteFunc(env, func(e string) bool { return strings.HasPrefix(e, prefix) })
	return append(env, prefix+value)
}
