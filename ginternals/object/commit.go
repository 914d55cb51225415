package object

import (
	"bytes"
	"strings"
	"time"

	"github.com/legit-vcs/legit/ginternals"
	"golang.org/x/xerrors"
)

// Commit represents a commit object: a tree, a list of parents,
// author/committer identities, and a message
type Commit struct {
	id ginternals.Oid

	TreeID    ginternals.Oid
	ParentIDs []ginternals.Oid
	Author    Signature
	Committer Signature
	Message   string
}

// NewCommit creates a commit in memory
func NewCommit(treeID ginternals.Oid, parents []ginternals.Oid, author, committer Signature, message string) *Commit {
	return &Commit{
		TreeID:    treeID,
		ParentIDs: parents,
		Author:    author,
		Committer: committer,
		Message:   message,
	}
}

// ID returns the commit's oid, computing it from the serialization if
// the commit was built in memory
func (c *Commit) ID() ginternals.Oid {
	if c.id.IsZero() {
		c.id = c.ToObject().ID()
	}
	return c.id
}

// Parent returns the mainline (first) parent of the commit, or
// NullOid for a root commit
func (c *Commit) Parent() ginternals.Oid {
	if len(c.ParentIDs) == 0 {
		return ginternals.NullOid
	}
	return c.ParentIDs[0]
}

// IsMerge returns whether the commit has more than one parent
func (c *Commit) IsMerge() bool {
	return len(c.ParentIDs) > 1
}

// Date returns the time the commit was created. Commits are dated by
// committer time
func (c *Commit) Date() time.Time {
	return c.Committer.Time
}

// TitleLine returns the first line of the commit message
func (c *Commit) TitleLine() string {
	line, _, _ := strings.Cut(c.Message, "\n")
	return line
}

// ToObject returns the commit serialized as an Object
func (c *Commit) ToObject() *Object {
	w := new(bytes.Buffer)
	w.WriteString("tree ")
	w.WriteString(c.TreeID.String())
	w.WriteByte('\n')
	for _, p := range c.ParentIDs {
		w.WriteString("parent ")
		w.WriteString(p.String())
		w.WriteByte('\n')
	}
	w.WriteString("author ")
	w.WriteString(c.Author.String())
	w.WriteByte('\n')
	w.WriteString("committer ")
	w.WriteString(c.Committer.String())
	w.WriteByte('\n')
	w.WriteByte('\n')
	w.WriteString(c.Message)

	o := New(TypeCommit, w.Bytes())
	c.id = o.ID()
	return o
}

// AsCommit parses the object as Commit
//
// A commit has following format:
//
// tree {sha}
// parent {sha}
// author {author_name} <{author_email}> {author_date_seconds} {author_date_timezone}
// committer {committer_name} <{committer_email}> {committer_date_seconds} {committer_date_timezone}
// {a blank line}
// {commit message}
//
// Note:
// - A commit can have 0, 1, or many parent lines.
//   The very first commit of a repo has no parent,
//   a regular commit has 1 parent,
//   and a merge commit has 2 or more parents
func (o *Object) AsCommit() (*Commit, error) {
	if o.typ != TypeCommit {
		return nil, xerrors.Errorf("type %s is not a commit: %w", o.typ, ErrObjectInvalid)
	}
	ci := &Commit{id: o.ID()}

	data := o.Bytes()
	offset := 0
	for {
		nl := bytes.IndexByte(data[offset:], '\n')
		if nl < 0 {
			return nil, xerrors.Errorf("could not find the commit message: %w", ErrCommitInvalid)
		}
		line := data[offset : offset+nl]
		offset += nl + 1

		// an empty line means everything from now to the end is the
		// commit message
		if len(line) == 0 {
			ci.Message = string(data[offset:])
			break
		}

		// Otherwise we're getting a key/value pair, separated by a space
		kv := bytes.SplitN(line, []byte{' '}, 2)
		if len(kv) != 2 {
			return nil, xerrors.Errorf("invalid header line: %w", ErrCommitInvalid)
		}
		switch string(kv[0]) {
		case "tree":
			oid, err := ginternals.NewOidFromChars(kv[1])
			if err != nil {
				return nil, xerrors.Errorf("could not parse tree id %q: %w", kv[1], err)
			}
			ci.TreeID = oid
		case "parent":
			oid, err := ginternals.NewOidFromChars(kv[1])
			if err != nil {
				return nil, xerrors.Errorf("could not parse parent id %q: %w", kv[1], err)
			}
			ci.ParentIDs = append(ci.ParentIDs, oid)
		case "author":
			sig, err := NewSignatureFromBytes(kv[1])
			if err != nil {
				return nil, xerrors.Errorf("could not parse author signature [%s]: %w", kv[1], err)
			}
			ci.Author = sig
		case "committer":
			sig, err := NewSignatureFromBytes(kv[1])
			if err != nil {
				return nil, xerrors.Errorf("could not parse committer signature [%s]: %w", kv[1], err)
			}
			ci.Committer = sig
		}
	}

	return ci, nil
}
