package ledger

import (
	"os"
	"os/user"
	"runtime"
)

// Environment is a best-effort snapshot of where the run happened.
// Fields that cannot be determined are nil.
type Environment struct {
	OS             *string `json:"os"`
	Arch           *string `json:"arch"`
	Hostname       *string `json:"hostname"`
	Username       *string `json:"username"`
	WorkingDir     *string `json:"working_dir"`
	RuntimeVersion *string `json:"runtime_version"`
	ToolVersion    *string `json:"tool_version"`
	Shell          *string `json:"shell"`
}

// SnapshotEnvironment captures the current environment. It never fails.
func SnapshotEnvironment() Environment {
	env := Environment{
		OS:             strPtr(runtime.GOOS),
		Arch:           strPtr(runtime.GOARCH),
		RuntimeVersion: strPtr(runtime.Version()),
		ToolVersion:    strPtr(ToolVersion),
		Shell:          strPtr(os.Getenv("SHELL")),
	}
	if h, err := os.Hostname(); err == nil {
		env.Hostname = strPtr(h)
	}
	if u, err := user.Current(); err == nil {
		env.Username = strPtr(u.Username)
	}
	if wd, err := os.Getwd(); err == nil {
		env.WorkingDir = strPtr(wd)
	}
	return env
}

// strPtr returns nil for the empty string.
func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
