package legit

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/object"
	"golang.org/x/xerrors"
)

// ErrInvalidObject is returned when a revision expression doesn't
// resolve to an object, or resolves to one of the wrong type
var ErrInvalidObject = errors.New("invalid object name")

var (
	parentPattern   = regexp.MustCompile(`^(.+)\^(\d*)$`)
	ancestorPattern = regexp.MustCompile(`^(.+)~(\d+)$`)
	upstreamPattern = regexp.MustCompile(`(?i)^(.*)@\{u(pstream)?\}$`)
)

var refAliases = map[string]string{
	"@": "HEAD",
	"":  "HEAD",
}

// HintedError is a resolution error with optional hint lines for the
// user
type HintedError struct {
	Msg  string
	Hint []string
}

// revNode is one node of a parsed revision expression
type revNode interface {
	resolve(rev *Revision) (ginternals.Oid, bool)
}

// refNode resolves a ref name, a full oid, or a short oid
type refNode struct {
	name string
}

func (n refNode) resolve(rev *Revision) (ginternals.Oid, bool) {
	return rev.readRef(n.name)
}

// parentNode resolves the Nth parent: rev^N (rev^ is rev^1)
type parentNode struct {
	rev revNode
	n   int
}

func (n parentNode) resolve(rev *Revision) (ginternals.Oid, bool) {
	oid, ok := n.rev.resolve(rev)
	if !ok {
		return ginternals.NullOid, false
	}
	return rev.commitParent(oid, n.n)
}

// ancestorNode resolves rev~N: the first parent applied N times
type ancestorNode struct {
	rev revNode
	n   int
}

func (n ancestorNode) resolve(rev *Revision) (ginternals.Oid, bool) {
	oid, ok := n.rev.resolve(rev)
	for i := 0; ok && i < n.n; i++ {
		oid, ok = rev.commitParent(oid, 1)
	}
	return oid, ok
}

// upstreamNode resolves rev@{upstream}: the remote-tracking ref
// configured for the branch
type upstreamNode struct {
	rev refNode
}

func (n upstreamNode) resolve(rev *Revision) (ginternals.Oid, bool) {
	name, ok := rev.upstream(n.rev.name)
	if !ok {
		return ginternals.NullOid, false
	}
	return rev.readRef(name)
}

// Revision parses and evaluates one revision expression against a
// repository
type Revision struct {
	repo *Repository

	// Expr is the original expression
	Expr string
	// Errors collects the failures hit while resolving, for
	// user-facing reporting
	Errors []HintedError

	query revNode
}

// NewRevision parses the given expression. A syntactically invalid
// expression still returns a Revision; Resolve will fail on it
func NewRevision(repo *Repository, expr string) *Revision {
	return &Revision{
		repo:  repo,
		Expr:  expr,
		query: parseRevision(expr),
	}
}

// IsValidRef returns whether the string could name a ref
func IsValidRef(revision string) bool {
	return ginternals.IsRefNameValid(revision)
}

// parseRevision builds the expression tree, recursing on the suffix
// operators with longest match first
func parseRevision(revision string) revNode {
	if m := parentPattern.FindStringSubmatch(revision); m != nil {
		rev := parseRevision(m[1])
		if rev == nil {
			return nil
		}
		n := 1
		if m[2] != "" {
			n, _ = strconv.Atoi(m[2])
		}
		return parentNode{rev: rev, n: n}
	}

	if m := upstreamPattern.FindStringSubmatch(revision); m != nil {
		rev := parseRevision(m[1])
		ref, ok := rev.(refNode)
		if !ok {
			return nil
		}
		return upstreamNode{rev: ref}
	}

	if m := ancestorPattern.FindStringSubmatch(revision); m != nil {
		rev := parseRevision(m[1])
		if rev == nil {
			return nil
		}
		n, _ := strconv.Atoi(m[2])
		return ancestorNode{rev: rev, n: n}
	}

	if name, ok := refAliases[revision]; ok {
		return refNode{name: name}
	}
	if IsValidRef(revision) {
		return refNode{name: revision}
	}
	return nil
}

// Resolve evaluates the expression. When requiredType is non-zero the
// result must be an object of that type; a commit requirement is the
// common case. ErrInvalidObject is reported on any failure, with
// details on Errors
func (rev *Revision) Resolve(requiredType object.Type) (ginternals.Oid, error) {
	var oid ginternals.Oid
	ok := false
	if rev.query != nil {
		oid, ok = rev.query.resolve(rev)
	}

	if ok && requiredType != 0 {
		if rev.loadTypedObject(oid, requiredType) == nil {
			ok = false
		}
	}

	if ok {
		return oid, nil
	}
	return ginternals.NullOid, xerrors.Errorf("not a valid object name: '%s': %w", rev.Expr, ErrInvalidObject)
}

func (rev *Revision) commitParent(oid ginternals.Oid, n int) (ginternals.Oid, bool) {
	commit := rev.loadTypedObject(oid, object.TypeCommit)
	if commit == nil {
		return ginternals.NullOid, false
	}
	ci, err := commit.AsCommit()
	if err != nil {
		return ginternals.NullOid, false
	}
	if n <= 0 || n > len(ci.ParentIDs) {
		return ginternals.NullOid, false
	}
	return ci.ParentIDs[n-1], true
}

func (rev *Revision) loadTypedObject(oid ginternals.Oid, typ object.Type) *object.Object {
	o, err := rev.repo.Database.Load(oid)
	if err != nil {
		return nil
	}
	if o.Type() != typ {
		rev.Errors = append(rev.Errors, HintedError{
			Msg: fmt.Sprintf("object %s is a %s, not a %s", oid, o.Type(), typ),
		})
		return nil
	}
	return o
}

func (rev *Revision) upstream(branch string) (string, bool) {
	if branch == "HEAD" {
		branch = rev.repo.Refs.CurrentRef().ShortName()
	}
	name, err := rev.repo.Remotes.GetUpstream(branch)
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

// readRef resolves a name as a ref first, then as an object-id
// prefix. A prefix matching several objects is ambiguous and recorded
// on Errors
func (rev *Revision) readRef(name string) (ginternals.Oid, bool) {
	if oid, ok := rev.repo.Refs.ReadRef(name); ok {
		return oid, true
	}

	candidates := rev.repo.Database.PrefixMatch(strings.ToLower(name))
	switch len(candidates) {
	case 1:
		return candidates[0], true
	case 0:
		return ginternals.NullOid, false
	default:
		rev.logAmbiguousOid(name, candidates)
		return ginternals.NullOid, false
	}
}

func (rev *Revision) logAmbiguousOid(name string, candidates []ginternals.Oid) {
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].String() < candidates[j].String()
	})

	hint := []string{"The candidates are:"}
	for _, oid := range candidates {
		o, err := rev.repo.Database.Load(oid)
		if err != nil {
			continue
		}
		info := fmt.Sprintf("  %s %s", oid.Short(), o.Type())

		if o.Type() == object.TypeCommit {
			if ci, err := o.AsCommit(); err == nil {
				info = fmt.Sprintf("%s %s - %s", info, ci.Author.ShortDate(), ci.TitleLine())
			}
		}
		hint = append(hint, info)
	}

	rev.Errors = append(rev.Errors, HintedError{
		Msg:  fmt.Sprintf("short SHA1 %s is ambiguous", name),
		Hint: hint,
	})
}
