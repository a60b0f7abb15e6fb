package chir

import (
	"fmt"
	"sort"
)

// Block is an ordered expression sequence closed by exactly one terminator.
// Predecessor edges are maintained as terminators are installed and removed,
// so they are always consistent with the successor lists.
type Block struct {
	id    int
	Name  string
	group *BlockGroup
	Exprs []Expr
	Term  Terminator

	// preds counts incoming edges per predecessor; a two-way branch to the
	// same block contributes two.
	preds map[*Block]int
}

// ID returns the block's group-local identity.
func (b *Block) ID() int { return b.id }

// Group returns the owning block group.
func (b *Block) Group() *BlockGroup { return b.group }

// Append adds a non-terminator expression at the end of the block.
func (b *Block) Append(e Expr) {
	if _, isTerm := e.(Terminator); isTerm {
		panic(fmt.Sprintf("chir: %s is a terminator, install it with SetTerm", e.Kind()))
	}
	if e.base().block != nil {
		panic(fmt.Sprintf("chir: expression %s already belongs to a block", e.Kind()))
	}
	e.base().block = b
	b.Exprs = append(b.Exprs, e)
}

// InsertAt adds a non-terminator expression at position i.
func (b *Block) InsertAt(i int, e Expr) {
	if _, isTerm := e.(Terminator); isTerm {
		panic(fmt.Sprintf("chir: %s is a terminator, install it with SetTerm", e.Kind()))
	}
	if e.base().block != nil {
		panic(fmt.Sprintf("chir: expression %s already belongs to a block", e.Kind()))
	}
	e.base().block = b
	b.Exprs = append(b.Exprs, nil)
	copy(b.Exprs[i+1:], b.Exprs[i:])
	b.Exprs[i] = e
}

// IndexOf returns the position of e in the block, or -1.
func (b *Block) IndexOf(e Expr) int {
	for i, cur := range b.Exprs {
		if cur == e {
			return i
		}
	}
	return -1
}

// SetTerm installs the block terminator, replacing any previous one and
// updating predecessor edges on both sides.
func (b *Block) SetTerm(t Terminator) {
	if old := b.Term; old != nil {
		for _, s := range old.Successors() {
			s.dropPred(b)
		}
		old.base().block = nil
		releaseOperands(old)
	}
	b.Term = t
	if t != nil {
		t.base().block = b
		for _, s := range t.Successors() {
			s.addPred(b)
		}
	}
}

func (b *Block) addPred(p *Block) {
	if b.preds == nil {
		b.preds = make(map[*Block]int)
	}
	b.preds[p]++
}

func (b *Block) dropPred(p *Block) {
	if b.preds[p] > 1 {
		b.preds[p]--
	} else {
		delete(b.preds, p)
	}
}

// Preds returns the predecessor blocks in a stable order.
func (b *Block) Preds() []*Block {
	out := make([]*Block, 0, len(b.preds))
	for p := range b.preds {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// HasPred reports whether p currently reaches b.
func (b *Block) HasPred(p *Block) bool { return b.preds[p] > 0 }

// Succs returns the terminator's successor blocks.
func (b *Block) Succs() []*Block {
	if b.Term == nil {
		return nil
	}
	return b.Term.Successors()
}

// RemoveExpr detaches e from its block and clears its operand use edges. A
// removed expression no longer appears as a user of any value.
func RemoveExpr(e Expr) {
	b := e.base().block
	if b == nil {
		releaseOperands(e)
		return
	}
	if t, ok := e.(Terminator); ok && b.Term == t {
		b.SetTerm(nil)
		return
	}
	if i := b.IndexOf(e); i >= 0 {
		b.Exprs = append(b.Exprs[:i], b.Exprs[i+1:]...)
	}
	e.base().block = nil
	releaseOperands(e)
}

// BlockGroup is the control-flow body of one function or nested lambda: an
// entry block plus the blocks reachable from it.
type BlockGroup struct {
	Entry  *Block
	Blocks []*Block
	nextID int
}

// NewBlockGroup creates an empty group.
func NewBlockGroup() *BlockGroup {
	return &BlockGroup{}
}

// NewBlock creates a block owned by this group. The first block created
// becomes the entry.
func (g *BlockGroup) NewBlock(name string) *Block {
	b := &Block{id: g.nextID, Name: name, group: g}
	g.nextID++
	if name == "" {
		b.Name = fmt.Sprintf("bb%d", b.id)
	}
	g.Blocks = append(g.Blocks, b)
	if g.Entry == nil {
		g.Entry = b
	}
	return b
}

// Contains reports whether b is owned by this group.
func (g *BlockGroup) Contains(b *Block) bool {
	return b != nil && b.group == g
}

// Reachable returns the blocks reachable from the entry in depth-first
// order.
func (g *BlockGroup) Reachable() []*Block {
	if g.Entry == nil {
		return nil
	}
	seen := make(map[*Block]bool)
	var order []*Block
	var walk func(b *Block)
	walk = func(b *Block) {
		if seen[b] {
			return
		}
		seen[b] = true
		order = append(order, b)
		for _, s := range b.Succs() {
			walk(s)
		}
	}
	walk(g.Entry)
	return order
}

// CompactUnreachable drops blocks no longer reachable from the entry,
// releasing their expressions' use edges.
func (g *BlockGroup) CompactUnreachable() bool {
	reachable := make(map[*Block]bool)
	for _, b := range g.Reachable() {
		reachable[b] = true
	}
	if len(reachable) == len(g.Blocks) {
		return false
	}
	kept := g.Blocks[:0]
	for _, b := range g.Blocks {
		if reachable[b] {
			kept = append(kept, b)
			continue
		}
		b.SetTerm(nil)
		for _, e := range b.Exprs {
			e.base().block = nil
			releaseOperands(e)
		}
		b.Exprs = nil
	}
	g.Blocks = kept
	return true
}
