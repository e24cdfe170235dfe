package graph

import (
	"container/heap"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// Node is one friend in the graph.
type Node struct {
	Name     string
	Image    string // opaque handle, empty when the node has no picture
	Position r2.Vec
}

type slot struct {
	node Node
	live bool
}

// freeList is a min-heap of freed slot indices.
type freeList []int

func (f freeList) Len() int           { return len(f) }
func (f freeList) Less(i, j int) bool { return f[i] < f[j] }
func (f freeList) Swap(i, j int)      { f[i], f[j] = f[j], f[i] }

func (f *freeList) Push(x any) { *f = append(*f, x.(int)) }

func (f *freeList) Pop() any {
	old := *f
	n := len(old)
	x := old[n-1]
	*f = old[:n-1]
	return x
}

// NodeStore keeps nodes in index-stable slots. A deleted node's slot is
// reused by a later allocation, lowest index first.
type NodeStore struct {
	slots []slot
	free  freeList
	live  int
}

// Slots returns the number of slots, live or free.
func (s *NodeStore) Slots() int {
	return len(s.slots)
}

// Live returns the number of live nodes.
func (s *NodeStore) Live() int {
	return s.live
}

func (s *NodeStore) check(i int) error {
	if i < 0 || i >= len(s.slots) {
		return fmt.Errorf("%w: %d (have %d slots)", ErrOutOfRange, i, len(s.slots))
	}
	return nil
}

func (s *NodeStore) checkLive(i int) error {
	if err := s.check(i); err != nil {
		return err
	}
	if !s.slots[i].live {
		return fmt.Errorf("%w: %d", ErrFreedIndex, i)
	}
	return nil
}

// Lookup returns the lowest live index whose node is called name.
func (s *NodeStore) Lookup(name string) (int, bool) {
	for i := range s.slots {
		if s.slots[i].live && s.slots[i].node.Name == name {
			return i, true
		}
	}
	return -1, false
}

// GetOrCreate returns the index of the live node called name, allocating a
// new node at the origin when there is none. created reports whether a
// slot was allocated.
func (s *NodeStore) GetOrCreate(name string) (index int, created bool, err error) {
	if name == "" {
		return -1, false, ErrEmptyName
	}
	if i, ok := s.Lookup(name); ok {
		return i, false, nil
	}

	node := Node{Name: name}
	if s.free.Len() > 0 {
		index = heap.Pop(&s.free).(int)
		s.slots[index] = slot{node: node, live: true}
	} else {
		index = len(s.slots)
		s.slots = append(s.slots, slot{node: node, live: true})
	}
	s.live++
	return index, true, nil
}

// IsFree reports whether the slot at i holds no node.
func (s *NodeStore) IsFree(i int) (bool, error) {
	if err := s.check(i); err != nil {
		return false, err
	}
	return !s.slots[i].live, nil
}

// Node returns a copy of the node at i.
func (s *NodeStore) Node(i int) (Node, error) {
	if err := s.checkLive(i); err != nil {
		return Node{}, err
	}
	return s.slots[i].node, nil
}

// Rename overwrites the name of the node at i. It does not check for
// duplicates; callers that need unique names check with Lookup first.
func (s *NodeStore) Rename(i int, name string) error {
	if err := s.checkLive(i); err != nil {
		return err
	}
	if name == "" {
		return ErrEmptyName
	}
	s.slots[i].node.Name = name
	return nil
}

// SetPosition moves the node at i.
func (s *NodeStore) SetPosition(i int, p r2.Vec) error {
	if err := s.checkLive(i); err != nil {
		return err
	}
	s.slots[i].node.Position = p
	return nil
}

// SetImage assigns an image handle to the node at i.
func (s *NodeStore) SetImage(i int, image string) error {
	if err := s.checkLive(i); err != nil {
		return err
	}
	s.slots[i].node.Image = image
	return nil
}

// Delete removes the node at i together with its edges and returns the
// removed endpoint pairs. Deleting a free slot is a no-op.
func (s *NodeStore) Delete(i int, edges *EdgeIndex) ([]Pair, error) {
	if err := s.check(i); err != nil {
		return nil, err
	}
	if !s.slots[i].live {
		return []Pair{}, nil
	}

	removed := edges.RemoveIncident(i)
	s.slots[i] = slot{}
	heap.Push(&s.free, i)
	s.live--
	return removed, nil
}

// isLive reports whether i is an in-range, occupied slot.
func (s *NodeStore) isLive(i int) bool {
	return i >= 0 && i < len(s.slots) && s.slots[i].live
}

// position returns the position of slot i without bounds checks.
func (s *NodeStore) position(i int) r2.Vec {
	return s.slots[i].node.Position
}
