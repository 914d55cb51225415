// Package config reads and writes git configuration files.
//
// The grammar is git's INI dialect: `[section]` or
// `[section "subsection"]` headings, `name = value` variables,
// comments starting with '#' or ';', case-insensitive section and
// variable names but case-sensitive subsection names
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/legit-vcs/legit/internal/lockfile"
	"golang.org/x/xerrors"
	"gopkg.in/ini.v1"
)

func loadOptions() ini.LoadOptions {
	return ini.LoadOptions{
		// a remote can carry several fetch refspecs under the same key
		AllowShadows:             true,
		// variable names are case-insensitive; section heads are
		// lowercased by sectionName, subsections keep their case
		InsensitiveKeys:          true,
		KeyValueDelimiters:       "=",
		SpaceBeforeInlineComment: true,
	}
}

// File is a single configuration file, usually .git/config
type File struct {
	path   string
	lock   *lockfile.Lockfile
	ini    *ini.File
	loaded bool
}

// NewFile returns a File stored at the given path. Nothing is read
// until Open or OpenForUpdate
func NewFile(path string) *File {
	return &File{
		path: path,
		lock: lockfile.New(path),
	}
}

// Open loads the file if it hasn't been loaded yet. A missing file
// behaves as an empty one
func (f *File) Open() error {
	if f.loaded {
		return nil
	}
	return f.reload()
}

func (f *File) reload() error {
	cfg, err := ini.LoadSources(loadOptions(), f.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return xerrors.Errorf("could not parse %s: %w", f.path, err)
		}
		cfg = ini.Empty(loadOptions())
	}
	f.ini = cfg
	f.loaded = true
	return nil
}

// OpenForUpdate acquires the file's lock and reloads its content
func (f *File) OpenForUpdate() error {
	if err := f.lock.HoldForUpdate(); err != nil {
		return err
	}
	return f.reload()
}

// Save serializes the file through its lock
func (f *File) Save() error {
	if !f.lock.IsHeld() {
		return lockfile.ErrStaleLock
	}

	var out strings.Builder
	if _, err := f.ini.WriteTo(&out); err != nil {
		f.lock.Rollback() //nolint:errcheck // it already failed
		return xerrors.Errorf("could not serialize config: %w", err)
	}
	if err := f.lock.Write([]byte(out.String())); err != nil {
		f.lock.Rollback() //nolint:errcheck // it already failed
		return err
	}
	return f.lock.Commit()
}

// sectionName builds the ini section name from key parts:
// ("core") → core, ("remote", "origin") → remote "origin"
func sectionName(parts []string) string {
	head := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return head
	}
	return fmt.Sprintf("%s %q", head, strings.Join(parts[1:], "."))
}

// splitKey separates the variable name from the section parts
func splitKey(key []string) (section []string, variable string) {
	return key[:len(key)-1], strings.ToLower(key[len(key)-1])
}

// Get returns the last value set for the key, or "" when absent.
// The key is the section parts followed by the variable name, e.g.
// Get("remote", "origin", "url")
func (f *File) Get(key ...string) string {
	values := f.GetAll(key...)
	if len(values) == 0 {
		return ""
	}
	return values[len(values)-1]
}

// GetAll returns every value set for the key, in file order
func (f *File) GetAll(key ...string) []string {
	if f.ini == nil {
		return nil
	}
	section, variable := splitKey(key)
	sec, err := f.ini.GetSection(sectionName(section))
	if err != nil {
		return nil
	}
	if !sec.HasKey(variable) {
		return nil
	}
	return sec.Key(variable).ValueWithShadows()
}

// GetBool interprets the key's value as a boolean. set is false when
// the key is absent
func (f *File) GetBool(key ...string) (value, set bool) {
	raw := f.Get(key...)
	if raw == "" {
		return false, false
	}
	switch strings.ToLower(raw) {
	case "yes", "on", "true", "1":
		return true, true
	case "no", "off", "false", "0":
		return false, true
	default:
		return false, false
	}
}

// GetInt interprets the key's value as a decimal integer. set is
// false when the key is absent or malformed
func (f *File) GetInt(key ...string) (value int, set bool) {
	raw := f.Get(key...)
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Set replaces the value of the key
func (f *File) Set(value string, key ...string) {
	section, variable := splitKey(key)
	sec := f.ini.Section(sectionName(section))
	sec.Key(variable).SetValue(value)
}

// Add appends a value to the key, keeping existing ones
func (f *File) Add(value string, key ...string) {
	section, variable := splitKey(key)
	sec := f.ini.Section(sectionName(section))
	if !sec.HasKey(variable) {
		sec.Key(variable).SetValue(value)
		return
	}
	sec.Key(variable).AddShadow(value) //nolint:errcheck // shadows are enabled
}

// Unset removes the key
func (f *File) Unset(key ...string) {
	section, variable := splitKey(key)
	sec, err := f.ini.GetSection(sectionName(section))
	if err != nil {
		return
	}
	sec.DeleteKey(variable)
}

// RemoveSection deletes a whole section, reporting whether it
// existed
func (f *File) RemoveSection(parts ...string) bool {
	name := sectionName(parts)
	if _, err := f.ini.GetSection(name); err != nil {
		return false
	}
	f.ini.DeleteSection(name)
	return true
}

// SectionExists returns whether the given section is present
func (f *File) SectionExists(parts ...string) bool {
	if f.ini == nil {
		return false
	}
	_, err := f.ini.GetSection(sectionName(parts))
	return err == nil
}

// Subsections returns the subsection names of the given section,
// e.g. Subsections("remote") → ["origin"]
func (f *File) Subsections(section string) []string {
	if f.ini == nil {
		return nil
	}
	prefix := strings.ToLower(section) + " \""
	var names []string
	for _, name := range f.ini.SectionStrings() {
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, "\"") {
			names = append(names, name[len(prefix):len(name)-1])
		}
	}
	return names
}
