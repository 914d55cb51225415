// Package gitpath contains consts and methods to work with paths inside
// the .git directory
package gitpath

// .git/ files and directories
const (
	DotGitPath      = ".git"
	ConfigPath      = "config"
	IndexPath       = "index"
	HEADPath        = "HEAD"
	OrigHeadPath    = "ORIG_HEAD"
	MergeHeadPath   = "MERGE_HEAD"
	MergeMsgPath    = "MERGE_MSG"
	ObjectsPath     = "objects"
	ObjectsPackPath = ObjectsPath + "/pack"
	RefsPath        = "refs"
	RefsHeadsPath   = RefsPath + "/heads"
	RefsRemotesPath = RefsPath + "/remotes"
	SequencerPath   = "sequencer"
)
