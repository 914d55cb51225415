package main

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/merge"
	"github.com/legit-vcs/legit/ginternals/protocol"
	"github.com/spf13/cobra"
)

const defaultReceivePack = "legit receive-pack"

var (
	unpackLinePattern = regexp.MustCompile(`^unpack (.+)$`)
	updateLinePattern = regexp.MustCompile(`^(ok|ng) (\S+)( (.+))?$`)
)

type pushFlags struct {
	force       bool
	receivePack string
}

func newPushCmd(cfg *globalFlags) *cobra.Command {
	flags := pushFlags{}
	cmd := &cobra.Command{
		Use:   "push [remote] [refspec]...",
		Short: "Update remote refs along with associated objects",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			return runPush(repo, flags, args)
		},
	}
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Update remote refs even when they aren't fast-forwards.")
	cmd.Flags().StringVar(&flags.receivePack, "receive-pack", "", "Path to the receive-pack program on the remote end.")
	return cmd
}

type pushUpdate struct {
	source  string
	ffError string
	oldOid  ginternals.Oid
	newOid  ginternals.Oid
}

type pushError struct {
	refNames [2]string
	reason   string
}

type pushState struct {
	repo  *legit.Repository
	flags pushFlags

	pushURL    string
	receiver   string
	fetchSpecs []string
	pushSpecs  []string

	remoteRefs map[string]ginternals.Oid
	updates    map[string]*pushUpdate
	errors     []pushError
}

func runPush(repo *legit.Repository, flags pushFlags, args []string) error {
	st := &pushState{repo: repo, flags: flags, updates: map[string]*pushUpdate{}}
	if err := st.configure(args); err != nil {
		return err
	}
	if len(st.pushSpecs) == 0 {
		fmt.Fprintln(os.Stderr, "fatal: no refspec given and no upstream configured")
		return exitCode(128)
	}

	ag, err := startAgent("push", st.receiver, st.pushURL, []string{protocol.CapReportStatus})
	if err != nil {
		return err
	}
	defer ag.wait()

	st.remoteRefs, err = recvReferences(ag.conn)
	if err != nil {
		return err
	}

	if err := st.sendUpdateRequests(ag.conn); err != nil {
		return err
	}
	if err := st.sendObjects(ag.conn); err != nil {
		return err
	}

	st.printSummary()

	if err := st.recvReportStatus(ag.conn); err != nil {
		return err
	}
	if err := ag.closeOutput(); err != nil {
		return err
	}

	if len(st.errors) > 0 {
		return exitCode(1)
	}
	return nil
}

func (st *pushState) configure(args []string) error {
	currentBranch := st.repo.Refs.CurrentRef().ShortName()
	branchRemote := st.repo.Config.Get("branch", currentBranch, "remote")
	branchMerge := st.repo.Config.Get("branch", currentBranch, "merge")

	name := branchRemote
	if len(args) > 0 {
		name = args[0]
	}
	if name == "" {
		name = legit.DefaultRemote
	}

	remote, ok := st.repo.Remotes.Get(name)
	if ok {
		st.pushURL = remote.PushURL()
		st.fetchSpecs = remote.FetchSpecs()
		st.pushSpecs = remote.PushSpecs()
		st.receiver = remote.Receiver()
	} else if len(args) > 0 {
		st.pushURL = args[0]
	}

	if st.flags.receivePack != "" {
		st.receiver = st.flags.receivePack
	}
	if st.receiver == "" {
		st.receiver = defaultReceivePack
	}

	switch {
	case len(args) > 1:
		st.pushSpecs = args[1:]
	case branchMerge != "":
		spec := protocol.NewRefspec(currentBranch, branchMerge, false)
		st.pushSpecs = []string{spec.String()}
	}
	return nil
}

func (st *pushState) sendUpdateRequests(conn *protocol.Conn) error {
	var localRefs []string
	for _, ref := range st.repo.Refs.ListAllRefs() {
		localRefs = append(localRefs, ref.Path)
	}
	sort.Strings(localRefs)

	targets, err := protocol.ExpandRefspecs(st.pushSpecs, localRefs)
	if err != nil {
		return err
	}

	targetNames := make([]string, 0, len(targets))
	for target := range targets {
		targetNames = append(targetNames, target)
	}
	sort.Strings(targetNames)

	for _, target := range targetNames {
		if err := st.selectUpdate(conn, target, targets[target]); err != nil {
			return err
		}
	}

	for ref, update := range st.updates {
		if err := st.sendUpdate(conn, ref, update.oldOid, update.newOid); err != nil {
			return err
		}
	}
	return conn.SendFlush()
}

func (st *pushState) selectUpdate(conn *protocol.Conn, target string, mapping protocol.Mapping) error {
	if mapping.Source == "" {
		return st.selectDeletion(conn, target)
	}

	oldOid := st.remoteRefs[target]
	newOid, err := legit.NewRevision(st.repo, mapping.Source).Resolve(0)
	if err != nil {
		return err
	}
	if oldOid == newOid {
		return nil
	}

	ffError, err := merge.FastForwardError(st.repo.Database, oldOid, newOid)
	if err != nil {
		return err
	}

	if st.flags.force || mapping.Forced || ffError == "" {
		st.updates[target] = &pushUpdate{source: mapping.Source, ffError: ffError, oldOid: oldOid, newOid: newOid}
		return nil
	}
	st.errors = append(st.errors, pushError{refNames: [2]string{mapping.Source, target}, reason: ffError})
	return nil
}

func (st *pushState) selectDeletion(conn *protocol.Conn, target string) error {
	if !conn.Capable(protocol.CapDeleteRefs) {
		st.errors = append(st.errors, pushError{
			refNames: [2]string{"", target},
			reason:   "remote does not support deleting refs",
		})
		return nil
	}
	st.updates[target] = &pushUpdate{oldOid: st.remoteRefs[target]}
	return nil
}

func (st *pushState) sendUpdate(conn *protocol.Conn, ref string, oldOid, newOid ginternals.Oid) error {
	return conn.SendPacket(fmt.Sprintf("%s %s %s", oidOrZero(oldOid), oidOrZero(newOid), ref))
}

func oidOrZero(oid ginternals.Oid) string {
	if oid.IsZero() {
		return zeroOidHex
	}
	return oid.String()
}

func (st *pushState) sendObjects(conn *protocol.Conn) error {
	var revs []string
	for _, update := range st.updates {
		if !update.newOid.IsZero() {
			revs = append(revs, update.newOid.String())
		}
	}
	if len(revs) == 0 {
		return nil
	}

	for _, oid := range st.remoteRefs {
		revs = append(revs, "^"+oid.String())
	}
	return sendPackedObjects(st.repo, conn, revs, conn.Capable(protocol.CapOfsDelta))
}

func (st *pushState) printSummary() {
	if len(st.updates) == 0 && len(st.errors) == 0 {
		fmt.Fprintln(os.Stderr, "Everything up-to-date")
		return
	}
	fmt.Fprintf(os.Stderr, "To %s\n", st.pushURL)
	for _, failure := range st.errors {
		reportRefUpdate(st.repo, failure.refNames, failure.reason, ginternals.NullOid, ginternals.NullOid, false)
	}
}

func (st *pushState) recvReportStatus(conn *protocol.Conn) error {
	if !conn.Capable(protocol.CapReportStatus) || len(st.updates) == 0 {
		return nil
	}

	line, ok, err := conn.RecvPacket()
	if err != nil {
		return err
	}
	if ok {
		if m := unpackLinePattern.FindStringSubmatch(line); m != nil {
			if m[1] != "ok" {
				fmt.Fprintf(os.Stderr, "error: remote unpack failed: %s\n", m[1])
			}
		} else if err := st.handleStatus(line); err != nil {
			return err
		}
	}

	return conn.RecvUntil("", func(line string) error {
		return st.handleStatus(line)
	})
}

func (st *pushState) handleStatus(line string) error {
	m := updateLinePattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}

	ref := m[2]
	reason := ""
	if m[1] != "ok" {
		reason = strings.TrimSpace(m[4])
		st.errors = append(st.errors, pushError{refNames: [2]string{"", ref}, reason: reason})
	}

	update, known := st.updates[ref]
	if !known {
		return nil
	}

	reportRefUpdate(st.repo, [2]string{update.source, ref}, reason, update.oldOid, update.newOid, update.ffError == "")
	if reason != "" {
		return nil
	}

	// mirror the accepted update into the local tracking refs
	targets, err := protocol.ExpandRefspecs(st.fetchSpecs, []string{ref})
	if err != nil {
		return err
	}
	for localRef := range targets {
		if update.newOid.IsZero() {
			if err := st.repo.Refs.DeleteRef(localRef); err != nil {
				return err
			}
			continue
		}
		if err := st.repo.Refs.UpdateRef(localRef, update.newOid); err != nil {
			return err
		}
	}
	return nil
}
