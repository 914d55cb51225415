package main

import (
	"fmt"
	"sort"
	"strings"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/spf13/cobra"
)

var shortStatus = map[string]string{
	legit.ChangeAdded:    "A",
	legit.ChangeModified: "M",
	legit.ChangeDeleted:  "D",
}

var longStatus = map[string]string{
	legit.ChangeAdded:    "new file:",
	legit.ChangeDeleted:  "deleted:",
	legit.ChangeModified: "modified:",
}

var conflictShortStatus = map[string]string{
	"1,2,3": "UU",
	"1,2":   "UD",
	"1,3":   "DU",
	"2,3":   "AA",
	"2":     "AU",
	"3":     "UA",
}

var conflictLongStatus = map[string]string{
	"1,2,3": "both modified:",
	"1,2":   "deleted by them:",
	"1,3":   "deleted by us:",
	"2,3":   "both added:",
	"2":     "added by us:",
	"3":     "added by them:",
}

func newStatusCmd(cfg *globalFlags) *cobra.Command {
	var porcelain bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the working tree status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			return runStatus(repo, porcelain)
		},
	}
	cmd.Flags().BoolVar(&porcelain, "porcelain", false, "Give the output in an easy-to-parse format for scripts.")
	return cmd
}

func runStatus(repo *legit.Repository, porcelain bool) error {
	if err := repo.Index.LoadForUpdate(); err != nil {
		return handleLockedIndex(err)
	}

	status, err := repo.Status(ginternals.NullOid)
	if err != nil {
		repo.Index.ReleaseLock() //nolint:errcheck // reporting the original error
		return err
	}
	if err := repo.Index.WriteUpdates(); err != nil {
		return err
	}

	if porcelain {
		printPorcelain(status)
	} else {
		printLongFormat(repo, status)
	}
	return nil
}

func stageKey(stages []int) string {
	sorted := append([]int{}, stages...)
	sort.Ints(sorted)
	parts := make([]string, len(sorted))
	for i, s := range sorted {
		parts[i] = fmt.Sprintf("%d", s)
	}
	return strings.Join(parts, ",")
}

func printPorcelain(status *legit.Status) {
	for _, path := range status.ChangedPaths() {
		fmt.Printf("%s %s\n", statusForPath(status, path), path)
	}
	for _, path := range status.UntrackedPaths() {
		fmt.Printf("?? %s\n", path)
	}
}

func statusForPath(status *legit.Status, path string) string {
	if stages, ok := status.Conflicts[path]; ok {
		return conflictShortStatus[stageKey(stages)]
	}

	left := " "
	if kind, ok := status.IndexChanges[path]; ok {
		left = shortStatus[kind]
	}
	right := " "
	if kind, ok := status.WorkspaceChanges[path]; ok {
		right = shortStatus[kind]
	}
	return left + right
}

func printLongFormat(repo *legit.Repository, status *legit.Status) {
	printBranchStatus(repo)
	printPendingCommitStatus(repo, status)

	printChangeSet("Changes to be committed", status.IndexChanges, longStatus, 12)
	printConflictSet(status)
	printChangeSet("Changes not staged for commit", status.WorkspaceChanges, longStatus, 12)

	if len(status.Untracked) > 0 {
		fmt.Println("Untracked files:")
		fmt.Println()
		for _, path := range status.UntrackedPaths() {
			fmt.Printf("\t%s\n", path)
		}
		fmt.Println()
	}

	printCommitStatus(status)
}

func printBranchStatus(repo *legit.Repository) {
	current := repo.Refs.CurrentRef()
	if current.IsHead() {
		fmt.Println("Not currently on any branch.")
		return
	}
	fmt.Printf("On branch %s\n", current.ShortName())
}

func printPendingCommitStatus(repo *legit.Repository, status *legit.Status) {
	hint := func(msg string) { fmt.Printf("  (%s)\n", msg) }

	switch repo.PendingCommit().CurrentType() {
	case legit.MergeTypeMerge:
		if len(status.Conflicts) == 0 {
			fmt.Println("All conflicts fixed but you are still merging.")
			hint("use 'legit commit' to conclude merge")
		} else {
			fmt.Println("You have unmerged paths.")
			hint("fix conflicts and run 'legit commit'")
			hint("use 'legit merge --abort' to abort the merge")
		}
		fmt.Println()
	case legit.MergeTypeCherryPick:
		printPendingType(repo, status, legit.MergeTypeCherryPick)
	case legit.MergeTypeRevert:
		printPendingType(repo, status, legit.MergeTypeRevert)
	}
}

func printPendingType(repo *legit.Repository, status *legit.Status, ty legit.MergeType) {
	hint := func(msg string) { fmt.Printf("  (%s)\n", msg) }

	oid, err := repo.PendingCommit().MergeOid(ty)
	if err != nil {
		return
	}
	op := string(ty)

	fmt.Printf("You are currently %sing commit %s.\n", op, oid.Short())
	if len(status.Conflicts) == 0 {
		hint(fmt.Sprintf("all conflicts fixed: run 'legit %s --continue'", op))
	} else {
		hint(fmt.Sprintf("fix conflicts and run 'legit %s --continue'", op))
	}
	hint(fmt.Sprintf("use 'legit %s --abort' to cancel the %s operation", op, op))
	fmt.Println()
}

func printChangeSet(message string, changes map[string]string, labels map[string]string, width int) {
	if len(changes) == 0 {
		return
	}

	paths := make([]string, 0, len(changes))
	for path := range changes {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	fmt.Println(message)
	fmt.Println()
	for _, path := range paths {
		label := labels[changes[path]]
		fmt.Printf("\t%-*s%s\n", width, label, path)
	}
	fmt.Println()
}

func printConflictSet(status *legit.Status) {
	if len(status.Conflicts) == 0 {
		return
	}

	paths := make([]string, 0, len(status.Conflicts))
	for path := range status.Conflicts {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	fmt.Println("Unmerged paths:")
	fmt.Println()
	for _, path := range paths {
		label := conflictLongStatus[stageKey(status.Conflicts[path])]
		fmt.Printf("\t%-17s%s\n", label, path)
	}
	fmt.Println()
}

func printCommitStatus(status *legit.Status) {
	if len(status.IndexChanges) > 0 {
		return
	}
	switch {
	case len(status.WorkspaceChanges) > 0:
		fmt.Println("no changes added to commit")
	case len(status.Untracked) > 0:
		fmt.Println("nothing added to commit but untracked files present")
	default:
		fmt.Println("nothing to commit, working tree clean")
	}
}
