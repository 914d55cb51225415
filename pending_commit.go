package legit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/internal/gitpath"
	"golang.org/x/xerrors"
)

// MergeType identifies which multi-step operation is in progress
type MergeType string

// The pending operations and their head files
const (
	MergeTypeMerge      MergeType = "merge"
	MergeTypeCherryPick MergeType = "cherry-pick"
	MergeTypeRevert     MergeType = "revert"
)

var pendingHeadFiles = map[MergeType]string{
	MergeTypeMerge:      gitpath.MergeHeadPath,
	MergeTypeCherryPick: "CHERRY_PICK_HEAD",
	MergeTypeRevert:     "REVERT_HEAD",
}

// ErrPendingCommit is returned when continuing an operation that is
// not in progress, or starting one while an operation of the same
// type is
var ErrPendingCommit = errors.New("invalid pending commit state")

// PendingCommit is the durable marker recording that a merge,
// cherry-pick, or revert stopped on conflicts and awaits
// --continue or --abort
type PendingCommit struct {
	path string

	// MessagePath holds the message of the commit that will conclude
	// the operation
	MessagePath string
}

// NewPendingCommit returns the pending-commit handle of the
// repository at gitPath
func NewPendingCommit(gitPath string) *PendingCommit {
	return &PendingCommit{
		path:        gitPath,
		MessagePath: filepath.Join(gitPath, gitpath.MergeMsgPath),
	}
}

// Start records the oid being merged. The head file must not already
// exist
func (pc *PendingCommit) Start(oid ginternals.Oid, ty MergeType) error {
	path := filepath.Join(pc.path, pendingHeadFiles[ty])
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return xerrors.Errorf("a %s is already in progress: %w", ty, ErrPendingCommit)
		}
		return err
	}
	defer f.Close() //nolint:errcheck // flushed by the Write below

	_, err = f.WriteString(oid.String())
	return err
}

// MergeOid returns the oid recorded for the given operation.
// ErrPendingCommit is reported when the operation isn't in progress
func (pc *PendingCommit) MergeOid(ty MergeType) (ginternals.Oid, error) {
	name := pendingHeadFiles[ty]
	data, err := os.ReadFile(filepath.Join(pc.path, name))
	if err != nil {
		if os.IsNotExist(err) {
			return ginternals.NullOid, xerrors.Errorf("there is no merge in progress (%s missing): %w", name, ErrPendingCommit)
		}
		return ginternals.NullOid, err
	}
	return ginternals.NewOidFromStr(strings.TrimSpace(string(data)))
}

// MergeMessage returns the stored commit message
func (pc *PendingCommit) MergeMessage() (string, error) {
	data, err := os.ReadFile(pc.MessagePath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteMessage stores the message the concluding commit will use
func (pc *PendingCommit) WriteMessage(message string) error {
	return os.WriteFile(pc.MessagePath, []byte(message), 0o644)
}

// Clear removes the operation's state files. ErrPendingCommit is
// reported when there is nothing to clear
func (pc *PendingCommit) Clear(ty MergeType) error {
	name := pendingHeadFiles[ty]
	if err := os.Remove(filepath.Join(pc.path, name)); err != nil {
		if os.IsNotExist(err) {
			return xerrors.Errorf("there is no merge to abort (%s missing): %w", name, ErrPendingCommit)
		}
		return err
	}
	os.Remove(pc.MessagePath) //nolint:errcheck // may not exist
	return nil
}

// InProgress returns whether any pending operation exists
func (pc *PendingCommit) InProgress() bool {
	return pc.CurrentType() != ""
}

// CurrentType returns the operation in progress, or ""
func (pc *PendingCommit) CurrentType() MergeType {
	for ty, name := range pendingHeadFiles {
		if _, err := os.Stat(filepath.Join(pc.path, name)); err == nil {
			return ty
		}
	}
	return ""
}
