package merge

import "github.com/legit-vcs/legit/ginternals"

// FastForwardError checks whether moving a ref from oldOid to newOid
// is a fast-forward. It returns "" when it is (or when either side is
// missing, which the caller treats as a create or delete), "fetch
// first" when oldOid isn't in the database, and "non-fast-forward"
// when oldOid isn't an ancestor of newOid
func FastForwardError(db Database, oldOid, newOid ginternals.Oid) (string, error) {
	if oldOid.IsZero() || newOid.IsZero() {
		return "", nil
	}

	if !db.Has(oldOid) {
		return "fetch first", nil
	}

	ff, err := IsFastForward(db, oldOid, newOid)
	if err != nil {
		return "", err
	}
	if !ff {
		return "non-fast-forward", nil
	}
	return "", nil
}

// IsFastForward returns whether oldOid is an ancestor of newOid,
// observed through the common-ancestor flags: after the search, a
// fast-forwardable oldOid has been reached from newOid's side
func IsFastForward(db Database, oldOid, newOid ginternals.Oid) (bool, error) {
	common, err := NewCommonAncestors(db, oldOid, []ginternals.Oid{newOid})
	if err != nil {
		return false, err
	}
	if _, err := common.Find(); err != nil {
		return false, err
	}
	return common.IsMarked(oldOid, FlagParent2), nil
}
