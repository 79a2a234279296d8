package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

func setupAppsDir(t *testing.T) (appsDir, binDir, dataDir string) {
	t.Helper()
	root := t.TempDir()
	appsDir = filepath.Join(root, "apps")
	binDir = filepath.Join(root, "bin")
	dataDir = filepath.Join(root, "share")

	for _, exe := range []string{"home", "browser", "browse", "keyboard"} {
		writeFile(t, filepath.Join(binDir, exe), "#!/bin/sh\nexit 0\n", 0o755)
	}
	writeFile(t, filepath.Join(binDir, "notes"), "not executable", 0o644)
	writeFile(t, filepath.Join(dataDir, "apps", "icons", "home.png"), "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR", 0o644)
	writeFile(t, filepath.Join(dataDir, "apps", "icons", "broken.png"), "just some text", 0o644)
	return appsDir, binDir, dataDir
}

func TestLoad(t *testing.T) {
	appsDir, binDir, dataDir := setupAppsDir(t)

	writeFile(t, filepath.Join(appsDir, "home.appdef"), `
name = "Home"
author = "<b>Shell</b> Team"
exec = "home"
icon = "@DATADIR:home.png"
flags = ["home auto-start"]
`, 0o644)
	writeFile(t, filepath.Join(appsDir, "web", "browser.yaml"), `
name: Browser
category: web
version: 3
exec: "$APP_BIN$browser"
args: "--fullscreen --kiosk"
icon: "@DATADIR:broken.png"
flags: [multi, uses-back]
deps: [touch, network]
`, 0o644)
	writeFile(t, filepath.Join(appsDir, "browse.json"), `{"name":"browse","exec":"`+filepath.Join(binDir, "browse")+`"}`, 0o644)
	writeFile(t, filepath.Join(appsDir, "osk.toml"), `
name = "Keyboard"
exec = "keyboard"
flags = ["osk", "sparkles"]
`, 0o644)

	// dropped descriptors
	writeFile(t, filepath.Join(appsDir, "missing.appdef"), `name = "Ghost"
exec = "ghost"`, 0o644)
	writeFile(t, filepath.Join(appsDir, "noexec.appdef"), `name = "Notes"
exec = "notes"`, 0o644)
	writeFile(t, filepath.Join(appsDir, "noname.appdef"), `exec = "home"`, 0o644)
	writeFile(t, filepath.Join(appsDir, "broken.appdef"), `name = "Broken`, 0o644)
	writeFile(t, filepath.Join(appsDir, "zz-duplicate.appdef"), `name = "Home"
exec = "browser"`, 0o644)
	writeFile(t, filepath.Join(appsDir, "README.md"), "ignored", 0o644)

	env := map[string]string{"PATH": "/nonexistent", "APP_BIN": binDir}
	cat, err := Load(appsDir, Options{
		BinDir:  binDir,
		DataDir: dataDir,
		LookupEnv: func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		},
	}, zap.NewNop())
	require.NoError(t, err)

	var names []string
	for _, d := range cat.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"browse", "Browser", "Home", "Keyboard"}, names)

	home, ok := cat.Lookup("Home")
	require.True(t, ok)
	assert.Equal(t, "Shell Team", home.Author)
	assert.Equal(t, "default", home.Category)
	assert.Equal(t, filepath.Join(binDir, "home"), home.Path)
	assert.Equal(t, filepath.Join(dataDir, "apps", "icons", "home.png"), home.Icon)
	assert.True(t, home.Flags.Has(types.AppHome|types.AppSystem|types.AppAutoStart))

	browser, ok := cat.Lookup("Browser")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(binDir, "browser"), browser.Path)
	assert.Equal(t, []string{browser.Path, "--fullscreen", "--kiosk"}, browser.Argv())
	assert.Equal(t, 3, browser.Version)
	assert.Empty(t, browser.Icon, "non-image icon is cleared")
	assert.True(t, browser.Deps.Has(types.DepTouch|types.DepNetwork))

	kb, ok := cat.Lookup("Keyboard")
	require.True(t, ok)
	assert.Equal(t, types.RoleOSK, kb.Role())

	byID, ok := cat.ByID(browser.ID)
	require.True(t, ok)
	assert.Same(t, browser, byID)

	_, ok = cat.Lookup("Ghost")
	assert.False(t, ok)
	_, ok = cat.Lookup("Notes")
	assert.False(t, ok)

	auto := cat.AutoStart()
	require.Len(t, auto, 1)
	assert.Equal(t, "Home", auto[0].Name)
}

func TestLoadMissingDirectory(t *testing.T) {
	cat, err := Load(filepath.Join(t.TempDir(), "nope"), Options{}, nil)
	assert.Error(t, err)
	require.NotNil(t, cat)
	assert.Equal(t, 0, cat.Len())
}

func TestResolve(t *testing.T) {
	_, binDir, _ := setupAppsDir(t)
	env := map[string]string{"PATH": "/nonexistent" + string(os.PathListSeparator) + binDir, "APP_BIN": binDir}
	r := &resolver{binDir: "", lookupEnv: func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}}

	tests := []struct {
		name    string
		exec    string
		want    string
		wantErr bool
	}{
		{name: "absolute", exec: filepath.Join(binDir, "home"), want: filepath.Join(binDir, "home")},
		{name: "absolute not executable", exec: filepath.Join(binDir, "notes"), wantErr: true},
		{name: "env token", exec: "$APP_BIN$browser", want: filepath.Join(binDir, "browser")},
		{name: "env token unset", exec: "$NOPE$browser", wantErr: true},
		{name: "env token malformed", exec: "$APP_BIN", wantErr: true},
		{name: "search path", exec: "keyboard", want: filepath.Join(binDir, "keyboard")},
		{name: "search path miss", exec: "ghost", wantErr: true},
		{name: "empty", exec: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.resolve(tt.exec)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrExecNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveFallsBackToBinDir(t *testing.T) {
	_, binDir, _ := setupAppsDir(t)
	r := &resolver{binDir: binDir, lookupEnv: func(string) (string, bool) { return "", false }}

	got, err := r.resolve("browse")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(binDir, "browse"), got)
}

func TestNewAssignsIDsAndSorts(t *testing.T) {
	cat := New(
		&types.AppDefinition{Name: "zeta"},
		&types.AppDefinition{Name: "Alpha"},
		&types.AppDefinition{Name: "alpha"},
	)

	list := cat.List()
	require.Len(t, list, 3)
	assert.Equal(t, "Alpha", list[0].Name)
	assert.Equal(t, "alpha", list[1].Name)
	assert.Equal(t, "zeta", list[2].Name)

	z, ok := cat.ByID(1)
	require.True(t, ok)
	assert.Equal(t, "zeta", z.Name)
}
