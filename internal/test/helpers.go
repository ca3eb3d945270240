package test

import (
	"path/filepath"
	"runtime"
)

// ProjectRoot is the repository root, resolved from this source file.
func ProjectRoot() string {
	_, b, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(b), "../..")
}

// ChannelsFile is the sample channel list shipped with the repository.
func ChannelsFile() string {
	return filepath.Join(ProjectRoot(), "configs", "channels.yaml")
}
