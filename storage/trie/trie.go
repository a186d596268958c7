package trie

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethtrie "github.com/ethereum/go-ethereum/trie"
	"github.com/ethereum/go-ethereum/trie/trienode"
	"github.com/ethereum/go-ethereum/triedb"

	"bonuschain/storage"
)

// Trie is the node's state store: a Merkle Patricia trie with a single
// pending change set. Writes accumulate until Commit flushes them under a
// new root, or Rollback drops them. Callers hash keys before use.
//
// Not safe for concurrent use.
type Trie struct {
	db      *triedb.Database
	pending *gethtrie.Trie
	root    common.Hash
}

// NewTrie opens the state at root. An empty root opens a fresh trie.
func NewTrie(store storage.Database, root []byte) (*Trie, error) {
	t := &Trie{db: store.TrieDB(), root: gethtypes.EmptyRootHash}
	if len(root) > 0 {
		t.root = common.BytesToHash(root)
	}
	if err := t.reopen(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trie) reopen() error {
	pending, err := gethtrie.New(gethtrie.TrieID(t.root), t.db)
	if err != nil {
		return fmt.Errorf("trie: open %s: %w", t.root, err)
	}
	t.pending = pending
	return nil
}

// Get reads key, including uncommitted writes. Absent keys return nil.
func (t *Trie) Get(key []byte) ([]byte, error) {
	return t.pending.Get(key)
}

func (t *Trie) Update(key, value []byte) error {
	return t.pending.Update(key, value)
}

func (t *Trie) Delete(key []byte) error {
	return t.pending.Delete(key)
}

// Root is the hash of the last commit.
func (t *Trie) Root() common.Hash {
	return t.root
}

// Rollback returns the trie to the last committed root.
func (t *Trie) Rollback() error {
	return t.reopen()
}

// Commit writes the pending change set to disk and makes its root current.
// The tick labels the state layer in the trie database. With nothing pending
// the root is unchanged.
func (t *Trie) Commit(tick uint64) (common.Hash, error) {
	next, changed := t.pending.Commit(false)
	if changed != nil {
		set := trienode.NewMergedNodeSet()
		if err := set.Merge(changed); err != nil {
			return common.Hash{}, fmt.Errorf("trie: merge nodes: %w", err)
		}
		if err := t.db.Update(next, t.root, tick, set, nil); err != nil {
			return common.Hash{}, fmt.Errorf("trie: stage tick %d: %w", tick, err)
		}
		if err := t.db.Commit(next, false); err != nil {
			return common.Hash{}, fmt.Errorf("trie: flush tick %d: %w", tick, err)
		}
	}
	// A committed geth trie cannot take further writes.
	t.root = next
	if err := t.reopen(); err != nil {
		return common.Hash{}, err
	}
	return next, nil
}
