package legit

import (
	"errors"
	"sort"

	"github.com/legit-vcs/legit/ginternals/config"
	"github.com/legit-vcs/legit/ginternals/protocol"
	"github.com/legit-vcs/legit/internal/gitpath"
	"golang.org/x/xerrors"
)

// DefaultRemote is the remote used when none is named
const DefaultRemote = "origin"

var (
	// ErrInvalidRemote is returned for a missing or duplicate remote
	ErrInvalidRemote = errors.New("invalid remote")

	// ErrNoUpstream is returned when a branch has no upstream
	// configured
	ErrNoUpstream = errors.New("no upstream configured")
)

// Remotes manages the remote.<name>.* and branch.<name>.* sections
// of the local config
type Remotes struct {
	config *config.File
}

// NewRemotes returns a Remotes over the given config file
func NewRemotes(cfg *config.File) *Remotes {
	return &Remotes{config: cfg}
}

// Add registers a remote with a wildcard fetch refspec per requested
// branch ("*" when none given)
func (r *Remotes) Add(name, url string, branches []string) error {
	if len(branches) == 0 {
		branches = []string{"*"}
	}

	if err := r.config.OpenForUpdate(); err != nil {
		return err
	}

	if r.config.Get("remote", name, "url") != "" {
		r.config.Save() //nolint:errcheck // release the lock
		return xerrors.Errorf("remote %s already exists: %w", name, ErrInvalidRemote)
	}

	r.config.Set(url, "remote", name, "url")
	for _, branch := range branches {
		source := gitpath.RefsHeadsPath + "/" + branch
		target := gitpath.RefsRemotesPath + "/" + name + "/" + branch
		spec := protocol.NewRefspec(source, target, true)
		r.config.Add(spec.String(), "remote", name, "fetch")
	}
	return r.config.Save()
}

// Remove deletes a remote's whole section
func (r *Remotes) Remove(name string) error {
	if err := r.config.OpenForUpdate(); err != nil {
		return err
	}
	removed := r.config.RemoveSection("remote", name)
	if err := r.config.Save(); err != nil {
		return err
	}
	if !removed {
		return xerrors.Errorf("no such remote: %s: %w", name, ErrInvalidRemote)
	}
	return nil
}

// ListRemotes returns the configured remote names, sorted
func (r *Remotes) ListRemotes() []string {
	r.config.Open() //nolint:errcheck // an unreadable file reads as empty
	names := r.config.Subsections("remote")
	sort.Strings(names)
	return names
}

// Get returns a handle on the named remote, or false when it isn't
// configured
func (r *Remotes) Get(name string) (*Remote, bool) {
	r.config.Open() //nolint:errcheck // an unreadable file reads as empty
	if !r.config.SectionExists("remote", name) {
		return nil, false
	}
	return &Remote{config: r.config, name: name}, true
}

// GetUpstream returns the remote-tracking ref the given branch merges
// from, e.g. refs/remotes/origin/master
func (r *Remotes) GetUpstream(branch string) (string, error) {
	if err := r.config.Open(); err != nil {
		return "", err
	}
	name := r.config.Get("branch", branch, "remote")
	remote, ok := r.Get(name)
	if !ok {
		return "", xerrors.Errorf("branch %s: %w", branch, ErrNoUpstream)
	}
	return remote.GetUpstream(branch)
}

// SetUpstream configures the given branch to track the first remote
// whose fetch specs cover the upstream ref. The remote's branch ref
// the upstream maps back to (e.g. refs/heads/master) is returned with
// the remote's name
func (r *Remotes) SetUpstream(branch, upstream string) (remoteName, ref string, err error) {
	for _, name := range r.ListRemotes() {
		remote, ok := r.Get(name)
		if !ok {
			continue
		}
		ref, err := remote.SetUpstream(branch, upstream)
		if err != nil {
			return "", "", err
		}
		if ref != "" {
			return name, ref, nil
		}
	}
	return "", "", xerrors.Errorf(
		"cannot setup tracking information; starting point '%s' is not a branch: %w", upstream, ErrInvalidBranchName)
}

// ErrInvalidBranchName is returned when an upstream cannot be
// configured for a name
var ErrInvalidBranchName = errors.New("invalid branch name")

// UnsetUpstream removes the branch's tracking configuration
func (r *Remotes) UnsetUpstream(branch string) error {
	if err := r.config.OpenForUpdate(); err != nil {
		return err
	}
	r.config.Unset("branch", branch, "remote")
	r.config.Unset("branch", branch, "merge")
	return r.config.Save()
}

// Remote exposes one remote's configuration
type Remote struct {
	config *config.File
	name   string
}

// Name returns the remote's name
func (r *Remote) Name() string {
	return r.name
}

// FetchURL returns the url fetches use
func (r *Remote) FetchURL() string {
	return r.config.Get("remote", r.name, "url")
}

// PushURL returns the url pushes use, falling back to the fetch url
func (r *Remote) PushURL() string {
	if url := r.config.Get("remote", r.name, "pushurl"); url != "" {
		return url
	}
	return r.FetchURL()
}

// FetchSpecs returns the remote's fetch refspecs
func (r *Remote) FetchSpecs() []string {
	return r.config.GetAll("remote", r.name, "fetch")
}

// PushSpecs returns the remote's push refspecs
func (r *Remote) PushSpecs() []string {
	return r.config.GetAll("remote", r.name, "push")
}

// Uploader returns the remote's upload-pack override
func (r *Remote) Uploader() string {
	return r.config.Get("remote", r.name, "uploadpack")
}

// Receiver returns the remote's receive-pack override
func (r *Remote) Receiver() string {
	return r.config.Get("remote", r.name, "receivepack")
}

// SetUpstream records the branch as tracking the given upstream
// through this remote. "" is returned when the remote's fetch specs
// don't cover the upstream
func (r *Remote) SetUpstream(branch, upstream string) (string, error) {
	refName, err := protocol.InvertRefspecs(r.FetchSpecs(), canonicalBranchRef(upstream))
	if err != nil {
		return "", err
	}
	if refName == "" {
		return "", nil
	}

	if err := r.config.OpenForUpdate(); err != nil {
		return "", err
	}
	r.config.Set(r.name, "branch", branch, "remote")
	r.config.Set(refName, "branch", branch, "merge")
	if err := r.config.Save(); err != nil {
		return "", err
	}
	return refName, nil
}

// GetUpstream maps the branch's configured merge ref through the
// fetch specs to its remote-tracking ref
func (r *Remote) GetUpstream(branch string) (string, error) {
	merge := r.config.Get("branch", branch, "merge")
	if merge == "" {
		return "", xerrors.Errorf("branch %s: %w", branch, ErrNoUpstream)
	}

	targets, err := protocol.ExpandRefspecs(r.FetchSpecs(), []string{merge})
	if err != nil {
		return "", err
	}

	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	if len(names) == 0 {
		return "", xerrors.Errorf("branch %s: %w", branch, ErrNoUpstream)
	}
	sort.Strings(names)
	return names[0], nil
}

func canonicalBranchRef(name string) string {
	spec, err := protocol.ParseRefspec(name)
	if err != nil {
		return name
	}
	return spec.Source
}
