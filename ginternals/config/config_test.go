package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/legit-vcs/legit/ginternals/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "config")
}

func TestFileSetGet(t *testing.T) {
	t.Parallel()

	path := configPath(t)

	f := config.NewFile(path)
	require.NoError(t, f.OpenForUpdate())
	f.Set("John Doe", "user", "name")
	f.Set("/tmp/remote", "remote", "origin", "url")
	require.NoError(t, f.Save())

	reloaded := config.NewFile(path)
	require.NoError(t, reloaded.Open())
	assert.Equal(t, "John Doe", reloaded.Get("user", "name"))
	assert.Equal(t, "/tmp/remote", reloaded.Get("remote", "origin", "url"))
	assert.Equal(t, "", reloaded.Get("user", "email"))
}

func TestFileKeysAreCaseInsensitive(t *testing.T) {
	t.Parallel()

	f := config.NewFile(configPath(t))
	require.NoError(t, f.OpenForUpdate())
	f.Set("value", "Core", "Bare")
	require.NoError(t, f.Save())

	assert.Equal(t, "value", f.Get("core", "bare"))
}

func TestFileSubsectionNamesAreCaseSensitive(t *testing.T) {
	t.Parallel()

	f := config.NewFile(configPath(t))
	require.NoError(t, f.OpenForUpdate())
	f.Set("url-a", "remote", "Origin", "url")
	require.NoError(t, f.Save())

	assert.Equal(t, "url-a", f.Get("remote", "Origin", "url"))
	assert.Equal(t, "", f.Get("remote", "origin", "url"))
}

func TestFileMultiValues(t *testing.T) {
	t.Parallel()

	f := config.NewFile(configPath(t))
	require.NoError(t, f.OpenForUpdate())
	f.Add("+refs/heads/*:refs/remotes/origin/*", "remote", "origin", "fetch")
	f.Add("+refs/tags/*:refs/tags/*", "remote", "origin", "fetch")
	require.NoError(t, f.Save())

	values := f.GetAll("remote", "origin", "fetch")
	require.Len(t, values, 2)
	assert.Equal(t, "+refs/heads/*:refs/remotes/origin/*", values[0])
	assert.Equal(t, "+refs/tags/*:refs/tags/*", values[1])

	// Get returns the last value
	assert.Equal(t, "+refs/tags/*:refs/tags/*", f.Get("remote", "origin", "fetch"))
}

func TestFileParsesGitSyntax(t *testing.T) {
	t.Parallel()

	path := configPath(t)
	content := `# a comment
[core]
	bare = false
	compression = 6
[remote "origin"]
	url = /tmp/remote ; trailing comment
[receive]
	denyDeletes = yes
	denyNonFastForwards = off
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	f := config.NewFile(path)
	require.NoError(t, f.Open())

	bare, set := f.GetBool("core", "bare")
	assert.True(t, set)
	assert.False(t, bare)

	level, set := f.GetInt("core", "compression")
	assert.True(t, set)
	assert.Equal(t, 6, level)

	assert.Equal(t, "/tmp/remote", f.Get("remote", "origin", "url"))

	deny, set := f.GetBool("receive", "denyDeletes")
	assert.True(t, set)
	assert.True(t, deny)

	deny, set = f.GetBool("receive", "denyNonFastForwards")
	assert.True(t, set)
	assert.False(t, deny)
}

func TestFileSubsections(t *testing.T) {
	t.Parallel()

	f := config.NewFile(configPath(t))
	require.NoError(t, f.OpenForUpdate())
	f.Set("/a", "remote", "origin", "url")
	f.Set("/b", "remote", "backup", "url")
	require.NoError(t, f.Save())

	names := f.Subsections("remote")
	assert.ElementsMatch(t, []string{"origin", "backup"}, names)
	assert.True(t, f.SectionExists("remote", "origin"))
	assert.False(t, f.SectionExists("remote", "nope"))
}

func TestFileRemoveSection(t *testing.T) {
	t.Parallel()

	f := config.NewFile(configPath(t))
	require.NoError(t, f.OpenForUpdate())
	f.Set("/a", "remote", "origin", "url")
	require.NoError(t, f.Save())

	require.NoError(t, f.OpenForUpdate())
	assert.True(t, f.RemoveSection("remote", "origin"))
	assert.False(t, f.RemoveSection("remote", "origin"))
	require.NoError(t, f.Save())

	assert.Equal(t, "", f.Get("remote", "origin", "url"))
}

func TestStack(t *testing.T) {
	t.Parallel()

	gitPath := t.TempDir()
	stack := config.NewStack(gitPath)

	local := stack.Local()
	require.NoError(t, local.OpenForUpdate())
	local.Set("5", "pack", "compression")
	require.NoError(t, local.Save())

	level, set := stack.GetInt("pack", "compression")
	assert.True(t, set)
	assert.Equal(t, 5, level)

	_, set = stack.GetInt("core", "compression")
	assert.False(t, set)
}
