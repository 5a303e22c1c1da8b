package fsmonitor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"sort"
)

// hashFile returns the SHA-256 of a regular file's contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashDir returns a stable SHA-256 over a canonical listing of a
// directory's immediate entries (name, size, modification time), per
// spec.md §4.3's open choice of "canonical listing hash" for
// directory-targeted watchdog events: the hash changes whenever an entry
// is added, removed, resized, or rewritten, and is order-independent.
func hashDir(path string) (string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(entries))
	byName := make(map[string]os.DirEntry, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
		byName[e.Name()] = e
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		info, err := byName[name].Info()
		if err != nil {
			continue
		}
		fmt.Fprintf(h, "%s:%d:%d\n", name, info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// hashPath dispatches to hashFile or hashDir depending on what is
// currently on disk at path. A path that has vanished by the time this
// runs (deleted between event capture and hashing) returns an empty hash
// rather than an error — the runtime I/O error policy in spec.md §7
// drops the event's hash rather than the event itself for a deletion.
func hashPath(path string, isDir bool) string {
	var (
		sum string
		err error
	)
	if isDir {
		sum, err = hashDir(path)
	} else {
		sum, err = hashFile(path)
	}
	if err != nil {
		return ""
	}
	return sum
}
