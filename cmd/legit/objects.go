package main

import (
	"compress/zlib"

	legit "github.com/legit-vcs/legit"
	"github.com/legit-vcs/legit/ginternals/packfile"
	"github.com/legit-vcs/legit/ginternals/protocol"
)

// sendPackedObjects walks the given revisions and streams the
// resulting pack over the connection
func sendPackedObjects(repo *legit.Repository, conn *protocol.Conn, revs []string, allowOfs bool) error {
	list, err := legit.NewRevList(repo, revs, legit.RevListOptions{Objects: true, Missing: true})
	if err != nil {
		return err
	}

	var items []packfile.Item
	for {
		item, err := list.Next()
		if err != nil {
			return err
		}
		if item == nil {
			break
		}
		items = append(items, packfile.Item{Oid: item.Oid, Path: item.Path})
	}

	writer := packfile.NewWriter(conn.Output(), repo.Database, packfile.WriterOptions{
		Compression: packCompression(repo),
		AllowOfs:    allowOfs,
	})
	return writer.WriteObjects(items)
}

func packCompression(repo *legit.Repository) int {
	if level, ok := repo.Config.GetInt("pack", "compression"); ok {
		return level
	}
	if level, ok := repo.Config.GetInt("core", "compression"); ok {
		return level
	}
	return zlib.DefaultCompression
}

// recvPackedObjects drains the incoming pack, either unpacking every
// object into loose storage or writing the pack to disk with its
// index, depending on the object count and the unpack limit
func recvPackedObjects(repo *legit.Repository, conn *protocol.Conn, unpackLimitKey string, prefix string) error {
	stream := packfile.NewStream(conn.Input(), []byte(prefix))
	reader := packfile.NewReader(stream)

	if err := reader.ReadHeader(); err != nil {
		return err
	}

	limit := transferUnpackLimit(repo, unpackLimitKey)
	if limit > 0 && int(reader.Count()) > limit {
		indexer, err := packfile.NewIndexer(repo.Database.PackPath(), reader, stream)
		if err != nil {
			return err
		}
		if err := indexer.ProcessPack(); err != nil {
			return err
		}
	} else {
		if err := packfile.NewUnpacker(repo.Database, reader, stream).ProcessPack(); err != nil {
			return err
		}
	}

	return repo.Database.ReloadPacks()
}

func transferUnpackLimit(repo *legit.Repository, key string) int {
	if limit, ok := repo.Config.GetInt(key, "unpackLimit"); ok {
		return limit
	}
	if limit, ok := repo.Config.GetInt("transfer", "unpackLimit"); ok {
		return limit
	}
	return 0
}
