package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/diagswitch/pkg/diag"
	"github.com/715d/diagswitch/pkg/keycheck"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var cfg Config
	cmd := newRootCmd(&cfg)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestList_Defaults(t *testing.T) {
	out, err := run(t, "list", "--env-prefix", "")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(diag.Defaults()))
	require.Equal(t, []string{"rigidBody", "false"}, strings.Fields(lines[0]))
	require.Equal(t, []string{"discreteDynamicsWorld", "true"}, strings.Fields(lines[3]))
}

func TestList_JSONWithOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "debug.yaml")
	require.NoError(t, os.WriteFile(path, []byte("switches:\n  gjk: true\n"), 0o600))

	out, err := run(t, "list", "--env-prefix", "", "-c", path, "--set", "discreteDynamicsWorld=false", "--json")
	require.NoError(t, err)

	var got jSwitches
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Equal(t, "dev", got.Version)
	r := diag.MustNew(got.Switches)
	require.Equal(t, []diag.Key{diag.GJK}, r.Enabled())
}

func TestGet(t *testing.T) {
	t.Setenv("DIAG_BROADPHASE", "yes")

	out, err := run(t, "get", "broadphase")
	require.NoError(t, err)
	require.Equal(t, "true\n", out)

	out, err = run(t, "get", "rigidBody", "--json")
	require.NoError(t, err)
	require.JSONEq(t, `{"key":"rigidBody","value":false}`, out)
}

func TestGet_UnknownKey(t *testing.T) {
	_, err := run(t, "get", "broadPhase", "--env-prefix", "")
	require.ErrorIs(t, err, diag.ErrUnknownKey)

	var cErr *codedError
	require.ErrorAs(t, err, &cErr)
	require.Equal(t, exitError, cErr.code)
}

func TestLoadRegistry_ConfigError(t *testing.T) {
	_, err := run(t, "list", "--env-prefix", "", "--set", "rigidbody=true")
	require.ErrorIs(t, err, diag.ErrConfig)
	require.Contains(t, err.Error(), "load configuration")

	var cErr *codedError
	require.ErrorAs(t, err, &cErr)
	require.Equal(t, exitError, cErr.code)
}

func TestFormatFindings(t *testing.T) {
	findings := []keycheck.Finding{
		{
			Key:      "broadPhase",
			Kind:     keycheck.KindUnknown,
			Reason:   "key is not registered",
			Accessor: "diag.Registry.MustGet",
			Position: token.Position{Filename: "world/step.go", Line: 10, Column: 5},
		},
		{
			Key:            "gjkDetecter",
			Kind:           keycheck.KindUnknown,
			Reason:         "key is not registered",
			Accessor:       "diag.Registry.MustGet",
			Position:       token.Position{Filename: "shapes/gjk.go", Line: 8, Column: 5},
			Suppressed:     true,
			SuppressReason: "legacy",
		},
	}

	require.Equal(t, "world/step.go:10:5 diag.Registry.MustGet(\"broadPhase\")\n", formatFindings(findings, false))
	require.Equal(t,
		"world/step.go:10:5 diag.Registry.MustGet(\"broadPhase\") (key is not registered)\n"+
			"shapes/gjk.go:8:5 diag.Registry.MustGet(\"gjkDetecter\") (key is not registered; suppressed: legacy)\n",
		formatFindings(findings, true))
}

func TestCodedError(t *testing.T) {
	err := errWithCode(nil, exitFindings)
	require.Empty(t, err.Error())

	cause := errors.New("boom")
	err = errWithCode(cause, exitError)
	require.ErrorIs(t, err, cause)
	require.Equal(t, "boom", err.Error())
}

func TestNonNil(t *testing.T) {
	require.NotNil(t, nonNil(nil))
	data, err := json.Marshal(jCheck{Findings: nonNil(nil)})
	require.NoError(t, err)
	require.Contains(t, string(data), `"findings":[]`)
}
