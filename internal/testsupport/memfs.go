package testsupport

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemFS is an in-memory fileutil.FS double. Paths are cleaned absolute paths;
// renaming a directory carries every descendant with it.
type MemFS struct {
	mu         sync.Mutex
	nodes      map[string]*memNode
	failRename map[string]error
}

type memNode struct {
	dir  bool
	data []byte
	mod  time.Time
}

// NewMemFS returns an empty filesystem containing only "/".
func NewMemFS() *MemFS {
	return &MemFS{
		nodes:      map[string]*memNode{"/": {dir: true, mod: time.Now()}},
		failRename: map[string]error{},
	}
}

// FailRename makes every Rename whose source is path return err.
func (m *MemFS) FailRename(path string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRename[filepath.Clean(path)] = err
}

// WriteFile creates or replaces a file, creating parents as needed.
func (m *MemFS) WriteFile(path string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	m.mkdirAllLocked(filepath.Dir(path))
	m.nodes[path] = &memNode{data: append([]byte(nil), data...), mod: time.Now()}
}

// Paths lists every file and directory below root, sorted.
func (m *MemFS) Paths(root string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	root = filepath.Clean(root)
	var out []string
	for p := range m.nodes {
		if p != root && isBelow(p, root) {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

func (m *MemFS) ReadDir(name string) ([]fs.DirEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	node, ok := m.nodes[name]
	if !ok {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	if !node.dir {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fmt.Errorf("not a directory")}
	}
	var entries []fs.DirEntry
	for p, n := range m.nodes {
		if p != name && filepath.Dir(p) == name {
			entries = append(entries, fs.FileInfoToDirEntry(memInfo{name: filepath.Base(p), node: n}))
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (m *MemFS) Stat(name string) (fs.FileInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	node, ok := m.nodes[name]
	if !ok {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
	}
	return memInfo{name: filepath.Base(name), node: node}, nil
}

func (m *MemFS) MkdirAll(path string, _ fs.FileMode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mkdirAllLocked(filepath.Clean(path))
}

func (m *MemFS) mkdirAllLocked(path string) error {
	if node, ok := m.nodes[path]; ok {
		if !node.dir {
			return &fs.PathError{Op: "mkdir", Path: path, Err: fmt.Errorf("not a directory")}
		}
		return nil
	}
	if parent := filepath.Dir(path); parent != path {
		if err := m.mkdirAllLocked(parent); err != nil {
			return err
		}
	}
	m.nodes[path] = &memNode{dir: true, mod: time.Now()}
	return nil
}

func (m *MemFS) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	node, ok := m.nodes[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	if node.dir {
		return nil, &fs.PathError{Op: "read", Path: name, Err: fmt.Errorf("is a directory")}
	}
	return append([]byte(nil), node.data...), nil
}

func (m *MemFS) AppendFile(name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	name = filepath.Clean(name)
	if parent, ok := m.nodes[filepath.Dir(name)]; !ok || !parent.dir {
		return &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	node, ok := m.nodes[name]
	if !ok {
		node = &memNode{}
		m.nodes[name] = node
	}
	node.data = append(node.data, data...)
	node.mod = time.Now()
	return nil
}

func (m *MemFS) Rename(oldpath, newpath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	oldpath = filepath.Clean(oldpath)
	newpath = filepath.Clean(newpath)
	if err, ok := m.failRename[oldpath]; ok {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: err}
	}
	if _, ok := m.nodes[oldpath]; !ok {
		return &fs.PathError{Op: "rename", Path: oldpath, Err: fs.ErrNotExist}
	}
	if _, ok := m.nodes[newpath]; ok {
		return &fs.PathError{Op: "rename", Path: newpath, Err: fs.ErrExist}
	}
	if parent, ok := m.nodes[filepath.Dir(newpath)]; !ok || !parent.dir {
		return &fs.PathError{Op: "rename", Path: newpath, Err: fs.ErrNotExist}
	}
	moved := make(map[string]*memNode)
	for p, n := range m.nodes {
		if p == oldpath || isBelow(p, oldpath) {
			moved[newpath+strings.TrimPrefix(p, oldpath)] = n
			delete(m.nodes, p)
		}
	}
	for p, n := range moved {
		m.nodes[p] = n
	}
	return nil
}

func isBelow(path, root string) bool {
	if root == "/" {
		return path != "/"
	}
	return strings.HasPrefix(path, root+"/")
}

type memInfo struct {
	name string
	node *memNode
}

func (i memInfo) Name() string { return i.name }
func (i memInfo) Size() int64  { return int64(len(i.node.data)) }
func (i memInfo) Mode() fs.FileMode {
	if i.node.dir {
		return fs.ModeDir | 0o755
	}
	return 0o644
}
func (i memInfo) ModTime() time.Time { return i.node.mod }
func (i memInfo) IsDir() bool        { return i.node.dir }
func (i memInfo) Sys() any           { return nil }
