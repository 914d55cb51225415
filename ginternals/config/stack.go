package config

import (
	"os"
	"path/filepath"

	"github.com/legit-vcs/legit/internal/gitpath"
)

// Stack layers the local repository config over the user's global
// one. The global file is a read-only fallback; all writes go to the
// local file
type Stack struct {
	local  *File
	global *File
}

// NewStack returns the config stack of the repository at gitPath
func NewStack(gitPath string) *Stack {
	s := &Stack{
		local: NewFile(filepath.Join(gitPath, gitpath.ConfigPath)),
	}
	if home, err := os.UserHomeDir(); err == nil {
		s.global = NewFile(filepath.Join(home, ".gitconfig"))
	}
	return s
}

// Local returns the repository's own config file, for updates
func (s *Stack) Local() *File {
	return s.local
}

func (s *Stack) files() []*File {
	if s.global == nil {
		return []*File{s.local}
	}
	return []*File{s.local, s.global}
}

// Get returns the key's value from the closest file that sets it
func (s *Stack) Get(key ...string) string {
	for _, f := range s.files() {
		f.Open() //nolint:errcheck // an unreadable file reads as empty
		if v := f.Get(key...); v != "" {
			return v
		}
	}
	return ""
}

// GetAll returns the key's values from the closest file that sets it
func (s *Stack) GetAll(key ...string) []string {
	for _, f := range s.files() {
		f.Open() //nolint:errcheck // an unreadable file reads as empty
		if v := f.GetAll(key...); len(v) > 0 {
			return v
		}
	}
	return nil
}

// GetBool returns the key's boolean value; set is false when no file
// sets it
func (s *Stack) GetBool(key ...string) (value, set bool) {
	for _, f := range s.files() {
		f.Open() //nolint:errcheck // an unreadable file reads as empty
		if v, ok := f.GetBool(key...); ok {
			return v, true
		}
	}
	return false, false
}

// GetInt returns the key's integer value; set is false when no file
// sets it
func (s *Stack) GetInt(key ...string) (value int, set bool) {
	for _, f := range s.files() {
		f.Open() //nolint:errcheck // an unreadable file reads as empty
		if v, ok := f.GetInt(key...); ok {
			return v, true
		}
	}
	return 0, false
}
