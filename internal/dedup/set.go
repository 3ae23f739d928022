package dedup

import "sort"

// RemovalSet holds the property IDs slated for removal. The detector only
// adds to it and the protector only discards from it.
type RemovalSet struct {
	ids map[int64]struct{}
}

func NewRemovalSet(ids ...int64) *RemovalSet {
	s := &RemovalSet{ids: make(map[int64]struct{}, len(ids))}
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s *RemovalSet) Add(id int64)     { s.ids[id] = struct{}{} }
func (s *RemovalSet) Discard(id int64) { delete(s.ids, id) }
func (s *RemovalSet) Len() int         { return len(s.ids) }

func (s *RemovalSet) Has(id int64) bool {
	_, ok := s.ids[id]
	return ok
}

// IDs returns the members in ascending order.
func (s *RemovalSet) IDs() []int64 {
	out := make([]int64, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s *RemovalSet) Clone() *RemovalSet {
	return NewRemovalSet(s.IDs()...)
}

// SubsetOf reports whether every member of s is also in other.
func (s *RemovalSet) SubsetOf(other *RemovalSet) bool {
	for id := range s.ids {
		if !other.Has(id) {
			return false
		}
	}
	return true
}
