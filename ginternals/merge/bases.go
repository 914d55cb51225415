package merge

import "github.com/legit-vcs/legit/ginternals"

// FindBases returns the merge bases of two commits: the best common
// ancestors with redundant ones removed. A base is redundant when
// another base descends from it
func FindBases(db Database, one, two ginternals.Oid) ([]ginternals.Oid, error) {
	common, err := NewCommonAncestors(db, one, []ginternals.Oid{two})
	if err != nil {
		return nil, err
	}
	commits, err := common.Find()
	if err != nil {
		return nil, err
	}
	if len(commits) <= 1 {
		return commits, nil
	}

	redundant := map[ginternals.Oid]struct{}{}
	for _, commit := range commits {
		if err := filterCommit(db, commits, commit, redundant); err != nil {
			return nil, err
		}
	}

	var bases []ginternals.Oid
	for _, commit := range commits {
		if _, ok := redundant[commit]; !ok {
			bases = append(bases, commit)
		}
	}
	return bases, nil
}

func filterCommit(db Database, commits []ginternals.Oid, commit ginternals.Oid, redundant map[ginternals.Oid]struct{}) error {
	if _, ok := redundant[commit]; ok {
		return nil
	}

	var others []ginternals.Oid
	for _, oid := range commits {
		if oid == commit {
			continue
		}
		if _, ok := redundant[oid]; ok {
			continue
		}
		others = append(others, oid)
	}
	if len(others) == 0 {
		return nil
	}

	common, err := NewCommonAncestors(db, commit, others)
	if err != nil {
		return err
	}
	if _, err := common.Find(); err != nil {
		return err
	}

	if common.IsMarked(commit, FlagParent2) {
		redundant[commit] = struct{}{}
	}
	for _, oid := range others {
		if common.IsMarked(oid, FlagParent1) {
			redundant[oid] = struct{}{}
		}
	}
	return nil
}
