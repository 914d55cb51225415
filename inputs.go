package legit

import (
	"github.com/legit-vcs/legit/ginternals"
	"github.com/legit-vcs/legit/ginternals/merge"
	"github.com/legit-vcs/legit/ginternals/object"
)

// MergeInputs describes the two sides and the common base(s) of a
// three-way merge
type MergeInputs interface {
	LeftName() string
	RightName() string
	LeftOid() ginternals.Oid
	RightOid() ginternals.Oid
	BaseOids() []ginternals.Oid
}

// Inputs are merge inputs computed from two revision expressions,
// with the merge bases discovered from the commit graph
type Inputs struct {
	leftName  string
	rightName string
	leftOid   ginternals.Oid
	rightOid  ginternals.Oid
	baseOids  []ginternals.Oid
}

// NewInputs resolves both revisions and finds their merge bases
func NewInputs(repo *Repository, leftRev, rightRev string) (*Inputs, error) {
	leftOid, err := NewRevision(repo, leftRev).Resolve(object.TypeCommit)
	if err != nil {
		return nil, err
	}
	rightOid, err := NewRevision(repo, rightRev).Resolve(object.TypeCommit)
	if err != nil {
		return nil, err
	}

	baseOids, err := merge.FindBases(repo.Database, leftOid, rightOid)
	if err != nil {
		return nil, err
	}

	return &Inputs{
		leftName:  leftRev,
		rightName: rightRev,
		leftOid:   leftOid,
		rightOid:  rightOid,
		baseOids:  baseOids,
	}, nil
}

func (i *Inputs) LeftName() string              { return i.leftName }
func (i *Inputs) RightName() string             { return i.rightName }
func (i *Inputs) LeftOid() ginternals.Oid       { return i.leftOid }
func (i *Inputs) RightOid() ginternals.Oid      { return i.rightOid }
func (i *Inputs) BaseOids() []ginternals.Oid    { return i.baseOids }

// AlreadyMerged returns whether the right side is already reachable
// from the left: its only base is the right commit itself
func (i *Inputs) AlreadyMerged() bool {
	return len(i.baseOids) == 1 && i.baseOids[0] == i.rightOid
}

// FastForward returns whether the left side can simply move to the
// right: its only base is the left commit itself
func (i *Inputs) FastForward() bool {
	return len(i.baseOids) == 1 && i.baseOids[0] == i.leftOid
}

// PickInputs are merge inputs with an explicitly chosen base, used by
// cherry-pick (base = picked commit's parent) and revert (base = the
// reverted commit, right = its parent)
type PickInputs struct {
	leftName  string
	rightName string
	leftOid   ginternals.Oid
	rightOid  ginternals.Oid
	baseOids  []ginternals.Oid
}

// NewPickInputs builds merge inputs from explicit values
func NewPickInputs(leftName, rightName string, leftOid, rightOid ginternals.Oid, baseOids []ginternals.Oid) *PickInputs {
	return &PickInputs{
		leftName:  leftName,
		rightName: rightName,
		leftOid:   leftOid,
		rightOid:  rightOid,
		baseOids:  baseOids,
	}
}

func (i *PickInputs) LeftName() string           { return i.leftName }
func (i *PickInputs) RightName() string          { return i.rightName }
func (i *PickInputs) LeftOid() ginternals.Oid    { return i.leftOid }
func (i *PickInputs) RightOid() ginternals.Oid   { return i.rightOid }
func (i *PickInputs) BaseOids() []ginternals.Oid { return i.baseOids }
