package window

import (
	"errors"
	"fmt"

	"github.com/prometheus/procfs"

	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
)

// ErrUnresolvedWindowOwner is returned when no registered instance owns a
// window's process or any of its ancestors within the walk depth
var ErrUnresolvedWindowOwner = errors.New("unresolved window owner")

// DefaultMaxDepth bounds the parent walk. Applications that fork helper
// processes owning windows are expected to do so a level or two deep.
const DefaultMaxDepth = 4

// OwnerLookup finds registered instances by pid
type OwnerLookup interface {
	Instance(pid int) (*supervisor.Instance, bool)
}

// ParentResolver returns the parent pid of a process
type ParentResolver interface {
	Parent(pid int) (int, error)
}

// ProcParents reads parent pids from /proc/<pid>/stat
type ProcParents struct {
	fs procfs.FS
}

// NewProcParents opens the proc filesystem mounted at mountPoint
func NewProcParents(mountPoint string) (*ProcParents, error) {
	if mountPoint == "" {
		mountPoint = procfs.DefaultMountPoint
	}
	fs, err := procfs.NewFS(mountPoint)
	if err != nil {
		return nil, fmt.Errorf("open procfs: %w", err)
	}
	return &ProcParents{fs: fs}, nil
}

// Parent returns the PPID field of pid's stat file
func (p *ProcParents) Parent(pid int) (int, error) {
	proc, err := p.fs.Proc(pid)
	if err != nil {
		return 0, err
	}
	stat, err := proc.Stat()
	if err != nil {
		return 0, err
	}
	return stat.PPID, nil
}

// resolveOwner walks from pid up the parent chain until a registered
// instance is found or maxDepth parents have been tried
func resolveOwner(owners OwnerLookup, parents ParentResolver, pid, maxDepth int) (*supervisor.Instance, error) {
	cur := pid
	for depth := 0; ; depth++ {
		if inst, ok := owners.Instance(cur); ok {
			return inst, nil
		}
		if parents == nil || depth >= maxDepth {
			break
		}
		ppid, err := parents.Parent(cur)
		if err != nil || ppid <= 1 || ppid == cur {
			break
		}
		cur = ppid
	}
	return nil, fmt.Errorf("%w: pid %d", ErrUnresolvedWindowOwner, pid)
}
