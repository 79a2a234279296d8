package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrExecNotFound is returned when an exec entry resolves to no executable file
var ErrExecNotFound = errors.New("executable not found")

// resolver turns the exec entry of a descriptor into an absolute path
type resolver struct {
	binDir    string
	lookupEnv func(string) (string, bool)
}

// resolve handles three forms:
//   - an absolute path, which must be executable
//   - "$VAR$file", resolved as $VAR/file
//   - a bare name, searched over PATH and then the installation bin dir
func (r *resolver) resolve(exec string) (string, error) {
	switch {
	case exec == "":
		return "", ErrExecNotFound

	case filepath.IsAbs(exec):
		if isExecutable(exec) {
			return exec, nil
		}
		return "", ErrExecNotFound

	case strings.HasPrefix(exec, "$"):
		parts := strings.Split(strings.TrimPrefix(exec, "$"), "$")
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return "", ErrExecNotFound
		}
		dir, ok := r.lookupEnv(parts[0])
		if !ok || dir == "" {
			return "", ErrExecNotFound
		}
		file := filepath.Join(dir, parts[1])
		if isExecutable(file) {
			return file, nil
		}
		return "", ErrExecNotFound

	default:
		var dirs []string
		if path, ok := r.lookupEnv("PATH"); ok {
			dirs = filepath.SplitList(path)
		}
		if r.binDir != "" {
			dirs = append(dirs, r.binDir)
		}
		for _, dir := range dirs {
			if dir == "" {
				continue
			}
			file := filepath.Join(dir, exec)
			if isExecutable(file) {
				return file, nil
			}
		}
		return "", ErrExecNotFound
	}
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return unix.Access(path, unix.X_OK) == nil
}
