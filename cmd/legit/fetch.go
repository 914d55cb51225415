package main

import (
	"fmt"
	"os"
	"sort"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/merge"
	"github.com/legit-vcs/legit/ginternals/object"
	"github.com/legit-vcs/legit/ginternals/protocol"
	"github.com/spf13/cobra"
)

const defaultUploadPack = "legit upload-pack"

type fetchFlags struct {
	force      bool
	uploadPack string
}

func newFetchCmd(cfg *globalFlags) *cobra.Command {
	flags := fetchFlags{}
	cmd := &cobra.Command{
		Use:   "fetch [remote] [refspec]...",
		Short: "Download objects and refs from another repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openRepo(cfg)
			if err != nil {
				return err
			}
			return runFetch(repo, flags, args)
		},
	}
	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Update refs even when they aren't fast-forwards.")
	cmd.Flags().StringVar(&flags.uploadPack, "upload-pack", "", "Path to the upload-pack program on the remote end.")
	return cmd
}

type fetchState struct {
	repo *legit.Repository

	fetchURL   string
	uploader   string
	fetchSpecs []string

	remoteRefs map[string]ginternals.Oid
	targets    map[string]protocol.Mapping
	localRefs  map[string]ginternals.Oid
	errors     map[string]string
}

func runFetch(repo *legit.Repository, flags fetchFlags, args []string) error {
	st := &fetchState{repo: repo, errors: map[string]string{}}
	if err := st.configure(flags, args); err != nil {
		return err
	}

	ag, err := startAgent("fetch", st.uploader, st.fetchURL, nil)
	if err != nil {
		return err
	}
	defer ag.wait()

	st.remoteRefs, err = recvReferences(ag.conn)
	if err != nil {
		return err
	}

	wanted, err := st.sendWantList(ag.conn)
	if err != nil {
		return err
	}
	if len(wanted) == 0 {
		return nil
	}

	if err := st.sendHaveList(ag.conn); err != nil {
		return err
	}
	if err := recvPackedObjects(repo, ag.conn, "fetch", "PACK"); err != nil {
		return err
	}

	if err := st.updateRemoteRefs(flags.force); err != nil {
		return err
	}
	if len(st.errors) > 0 {
		return exitCode(1)
	}
	return nil
}

func (st *fetchState) configure(flags fetchFlags, args []string) error {
	name := legit.DefaultRemote
	if len(args) > 0 {
		name = args[0]
	}

	remote, ok := st.repo.Remotes.Get(name)
	if ok {
		st.fetchURL = remote.FetchURL()
		st.fetchSpecs = remote.FetchSpecs()
		st.uploader = remote.Uploader()
	} else if len(args) > 0 {
		st.fetchURL = args[0]
	}

	if flags.uploadPack != "" {
		st.uploader = flags.uploadPack
	}
	if st.uploader == "" {
		st.uploader = defaultUploadPack
	}
	if len(args) > 1 {
		st.fetchSpecs = args[1:]
	}
	return nil
}

func (st *fetchState) sendWantList(conn *protocol.Conn) (map[ginternals.Oid]struct{}, error) {
	refNames := make([]string, 0, len(st.remoteRefs))
	for ref := range st.remoteRefs {
		refNames = append(refNames, ref)
	}
	sort.Strings(refNames)

	targets, err := protocol.ExpandRefspecs(st.fetchSpecs, refNames)
	if err != nil {
		return nil, err
	}
	st.targets = targets
	st.localRefs = map[string]ginternals.Oid{}

	wanted := map[ginternals.Oid]struct{}{}
	for target, mapping := range targets {
		remoteOid, ok := st.remoteRefs[mapping.Source]
		if !ok {
			continue
		}
		localOid, _ := st.repo.Refs.ReadRef(target)
		if localOid == remoteOid {
			continue
		}
		st.localRefs[target] = localOid
		wanted[remoteOid] = struct{}{}
	}

	for oid := range wanted {
		if err := conn.SendPacket("want " + oid.String()); err != nil {
			return nil, err
		}
	}
	if err := conn.SendFlush(); err != nil {
		return nil, err
	}
	return wanted, nil
}

func (st *fetchState) sendHaveList(conn *protocol.Conn) error {
	list, err := legit.NewRevList(st.repo, nil, legit.RevListOptions{All: true, Missing: true})
	if err != nil {
		return err
	}
	if err := list.EachCommit(func(c *object.Commit) error {
		return conn.SendPacket("have " + c.ID().String())
	}); err != nil {
		return err
	}
	if err := conn.SendPacket("done"); err != nil {
		return err
	}

	// swallow the server's acknowledgements until the pack starts
	return conn.RecvUntil("PACK", func(string) error { return nil })
}

func (st *fetchState) updateRemoteRefs(force bool) error {
	fmt.Fprintf(os.Stderr, "From %s\n", st.fetchURL)

	targets := make([]string, 0, len(st.localRefs))
	for target := range st.localRefs {
		targets = append(targets, target)
	}
	sort.Strings(targets)

	for _, target := range targets {
		if err := st.attemptRefUpdate(target, st.localRefs[target], force); err != nil {
			return err
		}
	}
	return nil
}

func (st *fetchState) attemptRefUpdate(target string, oldOid ginternals.Oid, force bool) error {
	mapping := st.targets[target]
	newOid := st.remoteRefs[mapping.Source]
	refNames := [2]string{mapping.Source, target}

	ffError, err := merge.FastForwardError(st.repo.Database, oldOid, newOid)
	if err != nil {
		return err
	}

	// without --force, reject exactly the updates that fail the
	// fast-forward check
	reason := ""
	if force || mapping.Forced || ffError == "" {
		if err := st.repo.Refs.UpdateRef(target, newOid); err != nil {
			return err
		}
	} else {
		reason = ffError
		st.errors[target] = ffError
	}

	reportRefUpdate(st.repo, refNames, reason, oldOid, newOid, ffError == "")
	return nil
}
