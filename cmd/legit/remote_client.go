package main

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"os/exec"
	"regexp"
	"strings"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/protocol"
	"golang.org/x/xerrors"
)

var refLinePattern = regexp.MustCompile(`^([0-9a-f]{40}) (.*)$`)

const zeroOidHex = "0000000000000000000000000000000000000000"

// agent is a remote helper process (upload-pack or receive-pack)
// driven over its stdin/stdout
type agent struct {
	conn *protocol.Conn
	cmd  *exec.Cmd
	in   io.WriteCloser
}

// startAgent spawns the given program against the url's path and
// wraps its pipes in a protocol connection. ssh urls run the program
// on the remote host; file urls and plain paths run it locally, and
// any other url scheme is rejected
func startAgent(name, program, rawURL string, capabilities []string) (*agent, error) {
	argv, err := buildAgentCommand(program, rawURL)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, xerrors.Errorf("could not start %q: %w", argv[0], err)
	}

	return &agent{
		conn: protocol.NewConn(name, stdout, stdin, capabilities),
		cmd:  cmd,
		in:   stdin,
	}, nil
}

func buildAgentCommand(program, rawURL string) ([]string, error) {
	argv := strings.Fields(program)
	if len(argv) == 0 {
		return nil, xerrors.Errorf("empty transport program")
	}

	uri, err := url.Parse(rawURL)
	if err != nil || uri.Scheme == "" {
		// a plain path
		return append(argv, rawURL), nil
	}

	switch uri.Scheme {
	case "file":
		return append(argv, uri.Path), nil
	case "ssh":
		ssh := []string{"ssh", uri.Hostname()}
		if uri.User != nil {
			ssh = append(ssh, "-l", uri.User.Username())
		}
		if port := uri.Port(); port != "" {
			ssh = append(ssh, "-p", port)
		}
		return append(ssh, append(argv, uri.Path)...), nil
	default:
		return nil, xerrors.Errorf("unsupported url scheme %q", uri.Scheme)
	}
}

// closeOutput signals EOF to the agent's stdin
func (a *agent) closeOutput() error {
	return a.in.Close()
}

// wait reaps the agent process
func (a *agent) wait() {
	a.cmd.Wait() //nolint:errcheck // the protocol already decided the outcome
}

// recvReferences reads the agent's advertised refs into a
// name → oid map
func recvReferences(conn *protocol.Conn) (map[string]ginternals.Oid, error) {
	remoteRefs := map[string]ginternals.Oid{}

	err := conn.RecvUntil("", func(line string) error {
		m := refLinePattern.FindStringSubmatch(line)
		if m == nil {
			return nil
		}
		if m[1] == zeroOidHex {
			return nil
		}
		oid, err := ginternals.NewOidFromStr(strings.ToLower(m[1]))
		if err != nil {
			return err
		}
		remoteRefs[m[2]] = oid
		return nil
	})
	return remoteRefs, err
}

// reportRefUpdate prints the outcome of one ref update the way push
// and fetch summarize them
func reportRefUpdate(repo *legit.Repository, refNames [2]string, reason string, oldOid, newOid ginternals.Oid, isFastForward bool) {
	if reason != "" {
		showRefUpdate(repo, "!", "[rejected]", refNames, reason)
		return
	}

	if oldOid == newOid {
		return
	}

	switch {
	case oldOid.IsZero():
		showRefUpdate(repo, "*", "[new branch]", refNames, "")
	case newOid.IsZero():
		showRefUpdate(repo, "-", "[deleted]", refNames, "")
	case isFastForward:
		showRefUpdate(repo, " ", oldOid.Short()+".."+newOid.Short(), refNames, "")
	default:
		showRefUpdate(repo, "+", oldOid.Short()+"..."+newOid.Short(), refNames, "forced update")
	}
}

func showRefUpdate(repo *legit.Repository, flag, summary string, refNames [2]string, reason string) {
	var names []string
	for _, name := range refNames {
		if name == "" {
			continue
		}
		names = append(names, repo.Refs.ShortName(name))
	}

	message := fmt.Sprintf(" %s %s %s", flag, summary, strings.Join(names, " -> "))
	if reason != "" {
		message += fmt.Sprintf(" (%s)", reason)
	}
	fmt.Fprintln(os.Stderr, message)
}
