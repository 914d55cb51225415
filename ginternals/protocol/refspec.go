package protocol

import (
	"errors"
	"regexp"
	"sort"
	"strings"

	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/internal/gitpath"
	"golang.org/x/xerrors"
)

var refspecFormat = regexp.MustCompile(`^(\+?)([^:]*)(:([^:]*))?$`)

// ErrInvalidRefspec is returned when a refspec cannot be parsed
var ErrInvalidRefspec = errors.New("invalid refspec")

// Refspec maps a source ref pattern to a target ref pattern. A "+"
// prefix forces updates that aren't fast-forwards; a "*" in both
// sides carries the matched segment across. An empty source with a
// non-empty target deletes the target on the far side
type Refspec struct {
	Source string
	Target string
	Forced bool
}

// NewRefspec builds a refspec from already canonical names
func NewRefspec(source, target string, forced bool) Refspec {
	return Refspec{Source: source, Target: target, Forced: forced}
}

// ParseRefspec parses "[+]<src>:<dst>"
func ParseRefspec(spec string) (Refspec, error) {
	m := refspecFormat.FindStringSubmatch(spec)
	if m == nil {
		return Refspec{}, xerrors.Errorf("%q: %w", spec, ErrInvalidRefspec)
	}

	source := canonical(m[2])
	target := canonical(m[4])
	if target == "" {
		target = source
	}
	return Refspec{Source: source, Target: target, Forced: m[1] == "+"}, nil
}

// canonical expands a bare branch name to its full ref name:
// "topic" → "refs/heads/topic", "heads/topic" → "refs/heads/topic".
// Names that aren't valid ref names (such as raw oids) pass through
func canonical(name string) string {
	if name == "" {
		return ""
	}
	if !ginternals.IsRefNameValid(strings.ReplaceAll(name, "*", "x")) {
		return name
	}

	first := strings.SplitN(name, "/", 2)[0]
	switch first {
	case "refs":
		return name
	case "heads", "remotes":
		return gitpath.RefsPath + "/" + name
	default:
		return gitpath.RefsHeadsPath + "/" + name
	}
}

// String renders the refspec back to its "[+]<src>:<dst>" form
func (rs Refspec) String() string {
	spec := ""
	if rs.Forced {
		spec = "+"
	}
	return spec + rs.Source + ":" + rs.Target
}

// Mapping is the resolved side of an expanded refspec
type Mapping struct {
	Source string
	Forced bool
}

// ExpandRefspecs matches the sources of the given specs against a
// set of refs and returns target → (source, forced)
func ExpandRefspecs(specs, refs []string) (map[string]Mapping, error) {
	mappings := map[string]Mapping{}
	for _, spec := range specs {
		rs, err := ParseRefspec(spec)
		if err != nil {
			return nil, err
		}
		rs.matchRefs(refs, mappings)
	}
	return mappings, nil
}

func (rs Refspec) matchRefs(refs []string, mappings map[string]Mapping) {
	if !strings.Contains(rs.Source, "*") {
		mappings[rs.Target] = Mapping{Source: rs.Source, Forced: rs.Forced}
		return
	}

	pattern := regexp.MustCompile("^" + strings.Replace(regexp.QuoteMeta(rs.Source), `\*`, "(.*)", 1) + "$")
	for _, ref := range refs {
		m := pattern.FindStringSubmatch(ref)
		if m == nil {
			continue
		}
		target := rs.Target
		if m[1] != "" {
			target = strings.Replace(target, "*", m[1], 1)
		}
		mappings[target] = Mapping{Source: ref, Forced: rs.Forced}
	}
}

// InvertRefspecs maps a ref on the far side back to its local name,
// using the specs in reverse. The alphabetically first match wins
func InvertRefspecs(specs []string, ref string) (string, error) {
	mappings := map[string]Mapping{}
	for _, spec := range specs {
		rs, err := ParseRefspec(spec)
		if err != nil {
			return "", err
		}
		rs.Source, rs.Target = rs.Target, rs.Source
		rs.matchRefs([]string{ref}, mappings)
	}

	matches := make([]string, 0, len(mappings))
	for target := range mappings {
		matches = append(matches, target)
	}
	if len(matches) == 0 {
		return "", nil
	}
	sort.Strings(matches)
	return matches[0], nil
}
