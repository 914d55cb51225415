package main

import (
	"os"
	"regexp"
	"sort"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals/protocol"
	"github.com/spf13/cobra"
)

func newUploadPackCmd(cfg *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:    "upload-pack <directory>",
		Short:  "Send objects packed back to a fetch client",
		Hidden: true,
		Args:   cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := openAgentRepo(args[0])
			if err != nil {
				return err
			}
			return runUploadPack(repo)
		},
	}
}

// openAgentRepo opens the repository a remote agent was pointed at.
// The path may name the working tree or the .git directory itself
func openAgentRepo(path string) (*legit.Repository, error) {
	return legit.FindRepository(path)
}

// sendReferences advertises every ref, sorted by name, followed by a
// flush. An empty repository advertises its capabilities on a
// placeholder line
func sendReferences(repo *legit.Repository, conn *protocol.Conn) error {
	refs := repo.Refs.ListAllRefs()
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })

	sent := false
	for _, ref := range refs {
		oid, ok := ref.ReadOid()
		if !ok {
			continue
		}
		if err := conn.SendPacket(oid.String() + " " + ref.Path); err != nil {
			return err
		}
		sent = true
	}
	if !sent {
		if err := conn.SendPacket(zeroOidHex + " capabilities^{}"); err != nil {
			return err
		}
	}
	return conn.SendFlush()
}

func runUploadPack(repo *legit.Repository) error {
	conn := protocol.NewConn("upload-pack", os.Stdin, os.Stdout, nil)

	if err := sendReferences(repo, conn); err != nil {
		return err
	}

	wanted, err := recvOids(conn, "want", "")
	if err != nil {
		return err
	}
	if len(wanted) == 0 {
		return nil
	}

	haves, err := recvOids(conn, "have", "done")
	if err != nil {
		return err
	}
	if err := conn.SendPacket("NAK"); err != nil {
		return err
	}

	revs := append([]string{}, wanted...)
	for _, oid := range haves {
		revs = append(revs, "^"+oid)
	}
	return sendPackedObjects(repo, conn, revs, conn.Capable(protocol.CapOfsDelta))
}

// recvOids collects the oids of "<prefix> <oid>" packets until a
// flush or the terminator line
func recvOids(conn *protocol.Conn, prefix, terminator string) ([]string, error) {
	pattern := regexp.MustCompile("^" + prefix + " ([0-9a-f]+)$")
	var oids []string

	err := conn.RecvUntil(terminator, func(line string) error {
		if m := pattern.FindStringSubmatch(line); m != nil {
			oids = append(oids, m[1])
		}
		return nil
	})
	return oids, err
}
