package main

import (
	"fmt"
	"os"
	"strings"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/merge"
	"github.com/legit-vcs/legit/ginternals/protocol"
	"github.com/spf13/cobra"
)

var receivePackCapabilities = []string{
	protocol.CapNoThin,
	protocol.CapReportStatus,
	protocol.CapDeleteRefs,
	protocol.CapOfsDelta,
}

func newReceivePackCmd(cfg *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:    "receive-pack <directory>",
		Short:  "Receive what is pushed into the repository",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openAgentRepo(args[0])
			if err != nil {
				return err
			}
			return runReceivePack(repo)
		},
	}
}

type receiveState struct {
	repo *legit.Repository
	conn *protocol.Conn

	// requests maps a ref name to its (old, new) oids; a zero oid
	// denotes create or delete
	requests map[string][2]ginternals.Oid
	order    []string

	unpackError error
}

func runReceivePack(repo *legit.Repository) error {
	st := &receiveState{
		repo:     repo,
		conn:     protocol.NewConn("receive-pack", os.Stdin, os.Stdout, receivePackCapabilities),
		requests: map[string][2]ginternals.Oid{},
	}

	if err := sendReferences(repo, st.conn); err != nil {
		return err
	}
	if err := st.recvUpdateRequests(); err != nil {
		return err
	}
	if err := st.recvObjects(); err != nil {
		return err
	}
	if err := st.updateRefs(); err != nil {
		return err
	}
	return nil
}

func (st *receiveState) recvUpdateRequests() error {
	return st.conn.RecvUntil("", func(line string) error {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return nil
		}
		oldOid, err := parseWireOid(parts[0])
		if err != nil {
			return err
		}
		newOid, err := parseWireOid(parts[1])
		if err != nil {
			return err
		}
		ref := parts[2]
		if _, seen := st.requests[ref]; !seen {
			st.order = append(st.order, ref)
		}
		st.requests[ref] = [2]ginternals.Oid{oldOid, newOid}
		return nil
	})
}

func parseWireOid(hex string) (ginternals.Oid, error) {
	if hex == zeroOidHex {
		return ginternals.NullOid, nil
	}
	return ginternals.NewOidFromStr(strings.ToLower(hex))
}

func (st *receiveState) recvObjects() error {
	anyNew := false
	for _, oids := range st.requests {
		if !oids[1].IsZero() {
			anyNew = true
			break
		}
	}

	if anyNew {
		if err := recvPackedObjects(st.repo, st.conn, "receive", ""); err != nil {
			st.unpackError = err
			return st.reportStatus(fmt.Sprintf("unpack %s", err))
		}
	}
	return st.reportStatus("unpack ok")
}

func (st *receiveState) reportStatus(line string) error {
	if !st.conn.Capable(protocol.CapReportStatus) {
		return nil
	}
	if line == "" {
		return st.conn.SendFlush()
	}
	return st.conn.SendPacket(line)
}

func (st *receiveState) updateRefs() error {
	for _, ref := range st.order {
		oids := st.requests[ref]
		if err := st.updateRef(ref, oids[0], oids[1]); err != nil {
			return err
		}
	}
	return st.reportStatus("")
}

func (st *receiveState) updateRef(ref string, oldOid, newOid ginternals.Oid) error {
	if st.unpackError != nil {
		return st.reportStatus(fmt.Sprintf("ng %s unpacker error", ref))
	}

	if reason := st.validateUpdate(ref, oldOid, newOid); reason != "" {
		return st.reportStatus(fmt.Sprintf("ng %s %s", ref, reason))
	}

	if err := st.repo.Refs.CompareAndSwap(ref, oldOid, newOid); err != nil {
		return st.reportStatus(fmt.Sprintf("ng %s %s", ref, err))
	}
	return st.reportStatus(fmt.Sprintf("ok %s", ref))
}

// validateUpdate enforces the receive.* policies
func (st *receiveState) validateUpdate(ref string, oldOid, newOid ginternals.Oid) string {
	cfg := st.repo.Config

	if deny, _ := cfg.GetBool("receive", "denyDeletes"); deny && newOid.IsZero() {
		return "deletion prohibited"
	}

	if deny, _ := cfg.GetBool("receive", "denyNonFastForwards"); deny {
		ffError, err := merge.FastForwardError(st.repo.Database, oldOid, newOid)
		if err != nil || ffError != "" {
			return "non-fast-forward"
		}
	}

	// the current-branch checks only matter for non-bare repositories
	if bare, set := cfg.GetBool("core", "bare"); (set && bare) || st.repo.Refs.CurrentRef().Path != ref {
		return ""
	}

	if deny, set := cfg.GetBool("receive", "denyCurrentBranch"); (!set || deny) && !newOid.IsZero() {
		return "branch is currently checked out"
	}
	if deny, set := cfg.GetBool("receive", "denyDeleteCurrent"); (!set || deny) && newOid.IsZero() {
		return "deletion of the current branch prohibited"
	}
	return ""
}
