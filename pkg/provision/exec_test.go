package provision

import (
	"errors"
	"os"
)

// MockExecutor implements executil.CommandExecutor for provisioning
// tests. The zero value runs every command successfully with empty
// output, finds no binaries, and reads no files; tests override the Func
// fields they care about. Run invocations are recorded in Commands.
type MockExecutor struct {
	LookPathFunc       func(file string) (string, error)
	RunFunc            func(name string, args ...string) (string, error)
	CombinedOutputFunc func(name string, args ...string) ([]byte, error)
	ReadFileFunc       func(path string) (string, error)
	GlobFunc           func(pattern string) ([]string, error)
	FileExistsFunc     func(path string) bool

	Commands [][]string
}

func (m *MockExecutor) LookPath(file string) (string, error) {
	if m.LookPathFunc != nil {
		return m.LookPathFunc(file)
	}
	return "", errors.New("executable file not found in $PATH")
}

func (m *MockExecutor) Run(name string, args ...string) (string, error) {
	m.Commands = append(m.Commands, append([]string{name}, args...))
	if m.RunFunc != nil {
		return m.RunFunc(name, args...)
	}
	return "", nil
}

func (m *MockExecutor) CombinedOutput(name string, args ...string) ([]byte, error) {
	if m.CombinedOutputFunc != nil {
		return m.CombinedOutputFunc(name, args...)
	}
	return nil, nil
}

func (m *MockExecutor) ReadFile(path string) (string, error) {
	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(path)
	}
	return "", os.ErrNotExist
}

func (m *MockExecutor) Glob(pattern string) ([]string, error) {
	if m.GlobFunc != nil {
		return m.GlobFunc(pattern)
	}
	return nil, nil
}

func (m *MockExecutor) FileExists(path string) bool {
	if m.FileExistsFunc != nil {
		return m.FileExistsFunc(path)
	}
	return false
}

// Ran reports whether a recorded command starts with the given words.
func (m *MockExecutor) Ran(words ...string) bool {
	for _, cmd := range m.Commands {
		if len(cmd) < len(words) {
			continue
		}
		match := true
		for i, word := range words {
			if cmd[i] != word {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
