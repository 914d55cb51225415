package legit

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/config"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/internal/gitpath"
	"github.com/legit-vcs/legit/internal/lockfile"
	"golang.org/x/xerrors"
)

// SequencerAction is one step of a multi-commit run
type SequencerAction string

// The actions the sequencer can replay
const (
	ActionPick   SequencerAction = "pick"
	ActionRevert SequencerAction = "revert"
)

// ErrUnsafeAbort is returned when HEAD moved while a sequenced
// operation was paused
var ErrUnsafeAbort = errors.New("you seem to have moved HEAD, not rewinding")

var todoLinePattern = regexp.MustCompile(`^(\S+) (\S+) (.*)$`)

// SequencerCommand pairs an action with the commit it applies to
type SequencerCommand struct {
	Action SequencerAction
	Commit *object.Commit
}

// Sequencer persists the remaining steps of a cherry-pick or revert
// run under .git/sequencer, so it can resume after conflicts
type Sequencer struct {
	repo *Repository

	path      string
	todoPath  string
	headPath  string
	abortPath string

	todoFile *lockfile.Lockfile
	commands []SequencerCommand
	config   *config.File
}

// NewSequencer returns the sequencer handle of the repository
func NewSequencer(repo *Repository) *Sequencer {
	path := filepath.Join(repo.GitPath, gitpath.SequencerPath)
	return &Sequencer{
		repo:      repo,
		path:      path,
		todoPath:  filepath.Join(path, "todo"),
		headPath:  filepath.Join(path, "head"),
		abortPath: filepath.Join(path, "abort-safety"),
		config:    config.NewFile(filepath.Join(path, "opts")),
	}
}

// Start creates the sequencer directory and records the current HEAD.
// The mainline option (for picking merge commits) is stored alongside
func (s *Sequencer) Start(mainline int) error {
	if err := os.Mkdir(s.path, 0o755); err != nil {
		return xerrors.Errorf("could not create sequencer directory: %w", err)
	}

	if mainline > 0 {
		if err := s.config.OpenForUpdate(); err != nil {
			return err
		}
		s.config.Set(strconv.Itoa(mainline), "options", "mainline")
		if err := s.config.Save(); err != nil {
			return err
		}
	}

	headOid, _ := s.repo.Refs.ReadHead()
	if err := s.writeFile(s.headPath, headOid.String()); err != nil {
		return err
	}
	if err := s.writeFile(s.abortPath, headOid.String()); err != nil {
		return err
	}

	return s.openTodoFile()
}

// Mainline returns the stored mainline option, or 0
func (s *Sequencer) Mainline() int {
	if err := s.config.Open(); err != nil {
		return 0
	}
	n, _ := s.config.GetInt("options", "mainline")
	return n
}

func (s *Sequencer) writeFile(path, data string) error {
	lock := lockfile.New(path)
	if err := lock.HoldForUpdate(); err != nil {
		return err
	}
	if err := lock.Write([]byte(data + "\n")); err != nil {
		lock.Rollback() //nolint:errcheck // it already failed
		return err
	}
	return lock.Commit()
}

// Pick schedules a cherry-pick of the commit
func (s *Sequencer) Pick(commit *object.Commit) {
	s.commands = append(s.commands, SequencerCommand{Action: ActionPick, Commit: commit})
}

// Revert schedules a revert of the commit
func (s *Sequencer) Revert(commit *object.Commit) {
	s.commands = append(s.commands, SequencerCommand{Action: ActionRevert, Commit: commit})
}

// NextCommand returns the next scheduled step, or nil
func (s *Sequencer) NextCommand() *SequencerCommand {
	if len(s.commands) == 0 {
		return nil
	}
	return &s.commands[0]
}

// DropCommand removes the completed step and refreshes the
// abort-safety marker
func (s *Sequencer) DropCommand() error {
	if len(s.commands) > 0 {
		s.commands = s.commands[1:]
	}
	headOid, _ := s.repo.Refs.ReadHead()
	return s.writeFile(s.abortPath, headOid.String())
}

func (s *Sequencer) openTodoFile() error {
	if info, err := os.Stat(s.path); err != nil || !info.IsDir() {
		return nil
	}
	s.todoFile = lockfile.New(s.todoPath)
	return s.todoFile.HoldForUpdate()
}

// Dump writes the remaining steps to the todo file
func (s *Sequencer) Dump() error {
	if s.todoFile == nil {
		return nil
	}

	for _, cmd := range s.commands {
		line := string(cmd.Action) + " " + cmd.Commit.ID().Short() + " " + cmd.Commit.TitleLine() + "\n"
		if err := s.todoFile.Write([]byte(line)); err != nil {
			return err
		}
	}
	return s.todoFile.Commit()
}

// Load restores the scheduled steps from the todo file
func (s *Sequencer) Load() error {
	if err := s.openTodoFile(); err != nil {
		return err
	}

	data, err := os.ReadFile(s.todoPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		m := todoLinePattern.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		oids := s.repo.Database.PrefixMatch(m[2])
		if len(oids) == 0 {
			return xerrors.Errorf("unknown commit %s in todo list: %w", m[2], ginternals.ErrObjectNotFound)
		}
		commit, err := s.repo.Database.LoadCommit(oids[0])
		if err != nil {
			return err
		}
		s.commands = append(s.commands, SequencerCommand{
			Action: SequencerAction(m[1]),
			Commit: commit,
		})
	}
	return nil
}

// Quit removes the sequencer state
func (s *Sequencer) Quit() error {
	if s.todoFile != nil && s.todoFile.IsHeld() {
		s.todoFile.Rollback() //nolint:errcheck // being deleted anyway
	}
	return os.RemoveAll(s.path)
}

// Abort rewinds HEAD to where the run started. ErrUnsafeAbort is
// reported when HEAD moved outside the sequencer's control
func (s *Sequencer) Abort() error {
	headData, err := os.ReadFile(s.headPath)
	if err != nil {
		return err
	}
	expectedData, err := os.ReadFile(s.abortPath)
	if err != nil {
		return err
	}

	headOid, err := ginternals.NewOidFromStr(strings.TrimSpace(string(headData)))
	if err != nil {
		return err
	}
	expected := strings.TrimSpace(string(expectedData))
	actual, _ := s.repo.Refs.ReadHead()

	if err := s.Quit(); err != nil {
		return err
	}

	if actual.String() != expected {
		return ErrUnsafeAbort
	}

	if err := s.repo.HardReset(headOid); err != nil {
		return err
	}
	origHead, err := s.repo.Refs.UpdateHead(headOid)
	if err != nil {
		return err
	}
	return s.repo.Refs.UpdateRef(gitpath.OrigHeadPath, origHead)
}
