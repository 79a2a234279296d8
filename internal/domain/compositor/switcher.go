package compositor

import (
	"github.com/ilixi/ilixi-sub001/internal/domain/supervisor"
	"github.com/ilixi/ilixi-sub001/internal/shared/types"
)

// Thumbnail is the switcher representation of an instance
type Thumbnail struct {
	inst    *supervisor.Instance
	windows []types.WindowHandle
}

func (t *Thumbnail) addWindow(h types.WindowHandle) bool {
	for _, w := range t.windows {
		if w == h {
			return false
		}
	}
	t.windows = append(t.windows, h)
	return true
}

func (t *Thumbnail) removeWindow(h types.WindowHandle) bool {
	for i, w := range t.windows {
		if w == h {
			t.windows = append(t.windows[:i], t.windows[i+1:]...)
			return true
		}
	}
	return false
}

// Instance returns the instance the thumbnail stands for
func (t *Thumbnail) Instance() *supervisor.Instance { return t.inst }

// Switcher is the ordered set of thumbnails shown in the recents overlay
type Switcher struct {
	thumbs   []*Thumbnail
	selected int
}

func (s *Switcher) add(t *Thumbnail) bool {
	if s.indexOf(t.inst.PID) >= 0 {
		return false
	}
	s.thumbs = append(s.thumbs, t)
	return true
}

func (s *Switcher) remove(pid int) bool {
	i := s.indexOf(pid)
	if i < 0 {
		return false
	}
	s.thumbs = append(s.thumbs[:i], s.thumbs[i+1:]...)
	if s.selected >= len(s.thumbs) {
		s.selected = 0
	}
	return true
}

func (s *Switcher) indexOf(pid int) int {
	for i, t := range s.thumbs {
		if t.inst.PID == pid {
			return i
		}
	}
	return -1
}

// Len returns the number of thumbnails
func (s *Switcher) Len() int { return len(s.thumbs) }

func (s *Switcher) selectPID(pid int) {
	if i := s.indexOf(pid); i >= 0 {
		s.selected = i
	} else {
		s.selected = 0
	}
}

func (s *Switcher) next() *Thumbnail {
	if len(s.thumbs) == 0 {
		return nil
	}
	s.selected = (s.selected + 1) % len(s.thumbs)
	return s.thumbs[s.selected]
}

// Selected returns the highlighted thumbnail
func (s *Switcher) Selected() *Thumbnail {
	if len(s.thumbs) == 0 {
		return nil
	}
	return s.thumbs[s.selected]
}

// Instances returns the instances in switcher order
func (s *Switcher) Instances() []*supervisor.Instance {
	out := make([]*supervisor.Instance, 0, len(s.thumbs))
	for _, t := range s.thumbs {
		out = append(out, t.inst)
	}
	return out
}
