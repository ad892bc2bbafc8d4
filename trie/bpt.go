package trie

import (
	"fmt"

	"github.com/colorfulnotion/devchain/common"
	log "github.com/colorfulnotion/devchain/log"
	"github.com/xlab/treeprint"
)

// Trie is a handle on one version of a binary Patricia Merkle trie. Keys are
// hashed onto 256-bit paths. Inserts and removes copy the path from the root,
// so the nodes of every other version stay untouched. The shape depends only
// on the set of entries, never on the order they were written.
type Trie struct {
	db   *Database
	root common.Hash
}

// Root returns the root hash; the empty trie has the zero hash.
func (t *Trie) Root() common.Hash {
	return t.root
}

// Get returns the value stored under key.
func (t *Trie) Get(key []byte) ([]byte, bool, error) {
	path := keyPath(key)
	h := t.root
	for depth := 0; ; depth++ {
		if h == zeroHash {
			return nil, false, nil
		}
		n, err := t.db.node(h)
		if err != nil {
			return nil, false, err
		}
		if n.isLeaf {
			if !samePath(n.path, path) {
				return nil, false, nil
			}
			v, err := t.db.leafValue(n)
			if err != nil {
				return nil, false, err
			}
			return v, true, nil
		}
		if depth >= maxDepth {
			return nil, false, fmt.Errorf("trie deeper than %d bits at %s", maxDepth, h)
		}
		if bit(path, depth) {
			h = n.right
		} else {
			h = n.left
		}
	}
}

// Insert sets key to value. An empty value removes the key.
func (t *Trie) Insert(key, value []byte) error {
	if len(value) == 0 {
		return t.Remove(key)
	}
	path := keyPath(key)
	newLeaf, err := t.db.putLeaf(path, key, value)
	if err != nil {
		return err
	}
	root, err := t.insert(t.root, path, newLeaf, 0)
	if err != nil {
		return err
	}
	log.Trace(log.TrieMonitoring, "trie insert", "key", common.Bytes2Hex(key), "old", t.root, "new", root)
	t.root = root
	return nil
}

func (t *Trie) insert(h common.Hash, path common.Hash, newLeaf common.Hash, depth int) (common.Hash, error) {
	if h == zeroHash {
		return newLeaf, nil
	}
	n, err := t.db.node(h)
	if err != nil {
		return zeroHash, err
	}
	if n.isLeaf {
		if samePath(n.path, path) {
			return newLeaf, nil
		}
		return t.join(h, n.path, newLeaf, path, depth)
	}
	if depth >= maxDepth {
		return zeroHash, fmt.Errorf("trie deeper than %d bits at %s", maxDepth, h)
	}
	if bit(path, depth) {
		right, err := t.insert(n.right, path, newLeaf, depth+1)
		if err != nil {
			return zeroHash, err
		}
		return t.db.putBranch(n.left, right)
	}
	left, err := t.insert(n.left, path, newLeaf, depth+1)
	if err != nil {
		return zeroHash, err
	}
	return t.db.putBranch(left, n.right)
}

// join builds the smallest subtree holding two leaves whose paths agree on
// the first depth bits.
func (t *Trie) join(a common.Hash, aPath common.Hash, b common.Hash, bPath common.Hash, depth int) (common.Hash, error) {
	if depth >= maxDepth {
		return zeroHash, fmt.Errorf("path collision on %x", aPath[:pathPrefix])
	}
	aBit, bBit := bit(aPath, depth), bit(bPath, depth)
	if aBit != bBit {
		if aBit {
			return t.db.putBranch(b, a)
		}
		return t.db.putBranch(a, b)
	}
	child, err := t.join(a, aPath, b, bPath, depth+1)
	if err != nil {
		return zeroHash, err
	}
	if aBit {
		return t.db.putBranch(zeroHash, child)
	}
	return t.db.putBranch(child, zeroHash)
}

// Remove deletes key. Removing an absent key leaves the root unchanged.
func (t *Trie) Remove(key []byte) error {
	root, err := t.remove(t.root, keyPath(key), 0)
	if err != nil {
		return err
	}
	log.Trace(log.TrieMonitoring, "trie remove", "key", common.Bytes2Hex(key), "old", t.root, "new", root)
	t.root = root
	return nil
}

func (t *Trie) remove(h common.Hash, path common.Hash, depth int) (common.Hash, error) {
	if h == zeroHash {
		return zeroHash, nil
	}
	n, err := t.db.node(h)
	if err != nil {
		return zeroHash, err
	}
	if n.isLeaf {
		if samePath(n.path, path) {
			return zeroHash, nil
		}
		return h, nil
	}

	child, sibling := n.left, n.right
	goRight := bit(path, depth)
	if goRight {
		child, sibling = n.right, n.left
	}
	newChild, err := t.remove(child, path, depth+1)
	if err != nil {
		return zeroHash, err
	}
	if newChild == child {
		return h, nil
	}

	// a branch never holds a single leaf; hoist it
	if newChild == zeroHash && sibling != zeroHash {
		s, err := t.db.node(sibling)
		if err != nil {
			return zeroHash, err
		}
		if s.isLeaf {
			return sibling, nil
		}
	}
	if sibling == zeroHash {
		if newChild == zeroHash {
			return zeroHash, nil
		}
		c, err := t.db.node(newChild)
		if err != nil {
			return zeroHash, err
		}
		if c.isLeaf {
			return newChild, nil
		}
	}
	if goRight {
		return t.db.putBranch(sibling, newChild)
	}
	return t.db.putBranch(newChild, sibling)
}

// Entry is one key/value pair of a trie. Key is nil when its preimage was
// never recorded in this database.
type Entry struct {
	Path  common.Hash
	Key   []byte
	Value []byte
}

// Walk visits every entry in path order.
func (t *Trie) Walk(fn func(Entry) error) error {
	return t.walk(t.root, fn)
}

func (t *Trie) walk(h common.Hash, fn func(Entry) error) error {
	if h == zeroHash {
		return nil
	}
	n, err := t.db.node(h)
	if err != nil {
		return err
	}
	if n.isLeaf {
		v, err := t.db.leafValue(n)
		if err != nil {
			return err
		}
		return fn(Entry{Path: n.path, Key: t.db.preimage(n.path), Value: v})
	}
	if err := t.walk(n.left, fn); err != nil {
		return err
	}
	return t.walk(n.right, fn)
}

// Tree renders the node structure for debugging.
func (t *Trie) Tree() (treeprint.Tree, error) {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("root %s", t.root))
	if err := t.addTree(tree, t.root); err != nil {
		return nil, err
	}
	return tree, nil
}

func (t *Trie) addTree(parent treeprint.Tree, h common.Hash) error {
	if h == zeroHash {
		parent.AddNode("empty")
		return nil
	}
	n, err := t.db.node(h)
	if err != nil {
		return err
	}
	if n.isLeaf {
		v, err := t.db.leafValue(n)
		if err != nil {
			return err
		}
		label := fmt.Sprintf("leaf %s", common.Str(h))
		if key := t.db.preimage(n.path); key != nil {
			label = fmt.Sprintf("%s key=%x", label, key)
		}
		parent.AddNode(fmt.Sprintf("%s value=%x", label, v))
		return nil
	}
	b := parent.AddBranch(fmt.Sprintf("branch %s", common.Str(h)))
	if err := t.addTree(b, n.left); err != nil {
		return err
	}
	return t.addTree(b, n.right)
}
