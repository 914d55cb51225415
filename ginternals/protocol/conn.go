// Package protocol implements the line-oriented wire protocol spoken
// between a client and the upload-pack / receive-pack agents, and the
// refspecs that drive what travels over it.
//
// Each packet is four hex digits of length (including the four
// digits themselves) followed by the payload; "0000" is a flush. The
// first payload line of each side carries its capability list
package protocol

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

// The capabilities this implementation understands
const (
	CapReportStatus = "report-status"
	CapDeleteRefs   = "delete-refs"
	CapOfsDelta     = "ofs-delta"
	CapNoThin       = "no-thin"
)

var pktLenPattern = regexp.MustCompile(`^[0-9a-f]{4}$`)

// Conn is one side of a pkt-line conversation
type Conn struct {
	command string
	in      *bufio.Reader
	out     io.Writer

	capsLocal  []string
	capsRemote []string
	capsFound  bool
	capsSent   bool

	log *logrus.Entry
}

// NewConn returns a connection speaking the given command's dialect
// ("fetch", "push", "upload-pack", or "receive-pack") over the given
// streams, advertising the given capabilities
func NewConn(command string, in io.Reader, out io.Writer, capabilities []string) *Conn {
	return &Conn{
		command:   command,
		in:        bufio.NewReader(in),
		out:       out,
		capsLocal: capabilities,
		log:       logrus.WithField("command", command),
	}
}

// Input exposes the underlying reader, used to hand the stream over
// to the pack reader once negotiation is done
func (c *Conn) Input() io.Reader {
	return c.in
}

// Output exposes the underlying writer, used to stream a pack after
// the last packet
func (c *Conn) Output() io.Writer {
	return c.out
}

// Capable returns whether the remote side advertised the given
// capability
func (c *Conn) Capable(ability string) bool {
	for _, cap := range c.capsRemote {
		if cap == ability {
			return true
		}
	}
	return false
}

// SendPacket writes one packet. The first packet sent gets the local
// capability list appended
func (c *Conn) SendPacket(line string) error {
	line = c.appendCaps(line)
	c.log.WithField("line", line).Debug("send packet")

	size := len(line) + 5 // 4 length digits plus the trailing newline
	if _, err := fmt.Fprintf(c.out, "%04x%s\n", size, line); err != nil {
		return xerrors.Errorf("could not send packet: %w", err)
	}
	return c.flush()
}

// SendFlush writes a flush packet ("0000")
func (c *Conn) SendFlush() error {
	c.log.Debug("send flush")
	if _, err := io.WriteString(c.out, "0000"); err != nil {
		return xerrors.Errorf("could not send flush packet: %w", err)
	}
	return c.flush()
}

func (c *Conn) flush() error {
	type flusher interface{ Flush() error }
	if f, ok := c.out.(flusher); ok {
		return f.Flush()
	}
	return nil
}

func (c *Conn) appendCaps(line string) string {
	if c.capsSent {
		return line
	}
	c.capsSent = true

	sep := "\x00"
	if c.command == "fetch" {
		sep = " "
	}

	toSend := c.capsLocal
	if c.capsFound {
		// only advertise what both sides understand
		var both []string
		for _, cap := range c.capsLocal {
			if c.Capable(cap) {
				both = append(both, cap)
			}
		}
		toSend = both
	}
	if len(toSend) == 0 {
		return line
	}

	sorted := append([]string{}, toSend...)
	sort.Strings(sorted)
	return line + sep + strings.Join(sorted, " ")
}

// RecvPacket reads one packet. ok is false on a flush packet or at
// EOF. When the four header bytes aren't a hex length (the remote
// started streaming a pack), they are returned verbatim
func (c *Conn) RecvPacket() (line string, ok bool, err error) {
	head := make([]byte, 4)
	if _, err := io.ReadFull(c.in, head); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return "", false, nil
		}
		return "", false, xerrors.Errorf("could not read packet length: %w", err)
	}

	if !pktLenPattern.Match(head) {
		c.log.WithField("head", string(head)).Debug("recv raw bytes")
		return string(head), true, nil
	}

	size, err := strconv.ParseInt(string(head), 16, 32)
	if err != nil || size == 0 {
		return "", false, nil
	}

	body := make([]byte, size-4)
	if _, err := io.ReadFull(c.in, body); err != nil {
		return "", false, xerrors.Errorf("could not read packet body: %w", err)
	}
	text := strings.TrimSuffix(string(body), "\n")
	text = c.detectCaps(text)
	c.log.WithField("line", text).Debug("recv packet")
	return text, true, nil
}

// RecvUntil yields packets to fn until a flush or the given
// terminator line shows up
func (c *Conn) RecvUntil(terminator string, fn func(string) error) error {
	for {
		line, ok, err := c.RecvPacket()
		if err != nil {
			return err
		}
		if !ok || line == terminator {
			return nil
		}
		if err := fn(line); err != nil {
			return err
		}
	}
}

// detectCaps strips and records the capability list of the first
// received payload line
func (c *Conn) detectCaps(line string) string {
	if c.capsFound {
		return line
	}
	c.capsFound = true

	// an upload-pack server receives "want <oid> <caps>"; everyone
	// else gets the caps after a NUL
	sep, fields := "\x00", 2
	if c.command == "upload-pack" {
		sep, fields = " ", 3
	}

	parts := strings.SplitN(line, sep, fields)
	if len(parts) < fields {
		c.capsRemote = []string{}
		return line
	}

	caps := strings.Fields(parts[len(parts)-1])
	c.capsRemote = caps
	return strings.Join(parts[:len(parts)-1], sep)
}
