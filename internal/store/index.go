package store

import (
	"github.com/dvloznov/txledger/internal/domain"
	"github.com/google/btree"
)

const btreeDegree = 32

type indexEntry struct {
	key domain.SortKey
	tx  domain.Transaction
}

func lessEntry(a, b indexEntry) bool { return a.key.Less(b.key) }

// timeIndex orders records by SortKey. It is not synchronized; callers
// hold the store's indexLock.
type timeIndex struct {
	tree *btree.BTreeG[indexEntry]
}

func newTimeIndex() *timeIndex {
	return &timeIndex{tree: btree.NewG(btreeDegree, lessEntry)}
}

func (ix *timeIndex) put(tx domain.Transaction) {
	ix.tree.ReplaceOrInsert(indexEntry{key: tx.SortKey(), tx: tx})
}

func (ix *timeIndex) remove(key domain.SortKey) {
	ix.tree.Delete(indexEntry{key: key})
}

func (ix *timeIndex) get(key domain.SortKey) (domain.Transaction, bool) {
	e, ok := ix.tree.Get(indexEntry{key: key})
	return e.tx, ok
}

func (ix *timeIndex) len() int { return ix.tree.Len() }

// after returns up to limit records whose key sorts strictly after c,
// in ascending order. The initial cursor scans from the start.
func (ix *timeIndex) after(c domain.Cursor, limit int) []domain.Transaction {
	out := make([]domain.Transaction, 0, limit)
	visit := func(e indexEntry) bool {
		if len(out) == limit {
			return false
		}
		out = append(out, e.tx)
		return true
	}

	if c.IsInitial() {
		ix.tree.Ascend(visit)
		return out
	}

	pivot := c.Key()
	ix.tree.AscendGreaterOrEqual(indexEntry{key: pivot}, func(e indexEntry) bool {
		if e.key == pivot {
			return true
		}
		return visit(e)
	})
	return out
}

func (ix *timeIndex) ascend(fn func(domain.Transaction) bool) {
	ix.tree.Ascend(func(e indexEntry) bool { return fn(e.tx) })
}
