package vfs

import (
	"sort"
	"strings"
	"sync"

	"github.com/aegros/kernel/internal/errno"
)

// FileSystem is the external contract a driver implements to claim a
// disk: Resolve returns ok iff it recognizes the on-disk format, in
// which case it also returns the filesystem's root inode. The FAT16
// on-disk layout itself is not implemented here; only this interface
// is defined, for a driver to satisfy.
type FileSystem interface {
	Name() string
	Resolve(disk DiskID) (root *Inode, ok bool)
}

// DiskID names a physical disk the drive-token path syntax ("0:/...")
// can select.
type DiskID int

type mountEntry struct {
	prefix string
	disk   DiskID
	fs     FileSystem
	root   *Inode
}

// MountTable registers prefix -> (filesystem, root inode) associations
// and resolves by longest-prefix match.
type MountTable struct {
	mu      sync.RWMutex
	entries []mountEntry
	disks   map[DiskID]struct{}
}

func NewMountTable() *MountTable {
	return &MountTable{disks: make(map[DiskID]struct{})}
}

// Add registers a mount; a duplicate prefix is refused with EEXIST.
func (m *MountTable) Add(prefix string, disk DiskID, fs FileSystem, root *Inode) errno.Err {
	prefix = normalizePrefix(prefix)
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.prefix == prefix {
			return errno.EEXIST
		}
	}
	m.entries = append(m.entries, mountEntry{prefix: prefix, disk: disk, fs: fs, root: root})
	sort.Slice(m.entries, func(i, j int) bool {
		return len(m.entries[i].prefix) > len(m.entries[j].prefix)
	})
	return errno.OK
}

// Resolve returns the mount whose prefix is the longest match for
// path, and the path remainder relative to that mount's root.
func (m *MountTable) Resolve(path string) (root *Inode, rel string, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.entries {
		if strings.HasPrefix(path, e.prefix) {
			return e.root, strings.TrimPrefix(path[len(e.prefix):], "/"), true
		}
	}
	return nil, "", false
}

// MountEntry is the public view of one registered mount, used by
// diagnostics outside this package (internal/devtools) that have no
// business touching the root inode directly.
type MountEntry struct {
	Prefix string
	Disk   DiskID
	FSName string
}

// Mounts returns a snapshot of the registered mounts, longest-prefix
// first (the order Resolve searches in).
func (m *MountTable) Mounts() []MountEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MountEntry, len(m.entries))
	for i, e := range m.entries {
		out[i] = MountEntry{Prefix: e.prefix, Disk: e.disk, FSName: e.fs.Name()}
	}
	return out
}

func normalizePrefix(p string) string {
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// ParsePath splits an absolute path into an optional drive token
// ("0:/...") and the remaining path. A leading "N:/" selects physical
// disk N directly; otherwise the path resolves against the mount
// table.
func ParsePath(path string) (disk DiskID, hasDisk bool, rest string, err errno.Err) {
	if path == "" || path[0] != '/' && !strings.Contains(path, ":/") {
		return 0, false, "", errno.EBADPATH
	}
	if i := strings.IndexByte(path, ':'); i > 0 && i+1 < len(path) && path[i+1] == '/' {
		n := 0
		for _, c := range path[:i] {
			if c < '0' || c > '9' {
				return 0, false, "", errno.EBADPATH
			}
			n = n*10 + int(c-'0')
		}
		return DiskID(n), true, path[i+2:], errno.OK
	}
	if path[0] != '/' {
		return 0, false, "", errno.EBADPATH
	}
	return 0, false, path, errno.OK
}

// Split breaks a resolved path into its slash-separated components,
// skipping empty segments produced by repeated slashes.
func Split(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" && p != "." {
			out = append(out, p)
		}
	}
	return out
}
