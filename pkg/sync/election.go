package sync

import "github.com/google/btree"

// idItem adapts an int64 agent id to google/btree's Item interface.
type idItem int64

func (a idItem) Less(than btree.Item) bool { return a < than.(idItem) }

// participantSet keeps the current round's participant ids in an
// ordered tree so the main-agent rule (lowest id among participants,
// spec §4.5/§9) is a Min() lookup instead of a linear scan.
type participantSet struct {
	tree *btree.BTree
}

func newParticipantSet() *participantSet {
	return &participantSet{tree: btree.New(2)}
}

func (s *participantSet) Add(id int64) {
	s.tree.ReplaceOrInsert(idItem(id))
}

func (s *participantSet) Remove(id int64) {
	s.tree.Delete(idItem(id))
}

func (s *participantSet) Has(id int64) bool {
	return s.tree.Has(idItem(id))
}

func (s *participantSet) Len() int {
	return s.tree.Len()
}

// Main returns the lowest participating id, and false if the set is empty.
func (s *participantSet) Main() (int64, bool) {
	item := s.tree.Min()
	if item == nil {
		return 0, false
	}
	return int64(item.(idItem)), true
}

func (s *participantSet) All() []int64 {
	ids := make([]int64, 0, s.tree.Len())
	s.tree.Ascend(func(item btree.Item) bool {
		ids = append(ids, int64(item.(idItem)))
		return true
	})
	return ids
}
