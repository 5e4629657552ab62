// Package molecule holds the chemical core of the registry: the atom/bond graph
// model, the SMILES parser that produces it, the substructure matcher that
// compares graphs, and the in-memory Registry that owns stored structures.
package molecule

import (
	"fmt"
)

// ─────────────────────────────────────────────────────────────────────────────
// Bond order
// ─────────────────────────────────────────────────────────────────────────────

// BondOrder is the multiplicity of a bond.
type BondOrder uint8

const (
	BondSingle BondOrder = iota + 1
	BondDouble
	BondTriple
	BondAromatic
)

func (o BondOrder) String() string {
	switch o {
	case BondSingle:
		return "single"
	case BondDouble:
		return "double"
	case BondTriple:
		return "triple"
	case BondAromatic:
		return "aromatic"
	default:
		return fmt.Sprintf("BondOrder(%d)", uint8(o))
	}
}

// Valid reports whether o is one of the four supported orders.
func (o BondOrder) Valid() bool {
	return o >= BondSingle && o <= BondAromatic
}

// ─────────────────────────────────────────────────────────────────────────────
// Atom and Bond
// ─────────────────────────────────────────────────────────────────────────────

// Atom is a vertex of the molecule graph.  Its identity is its index within
// the owning Graph.
type Atom struct {
	// Element is the capitalised element symbol ("C", "Cl", "Se").  Aromatic
	// atoms written in lowercase carry the same symbol with Aromatic set.
	Element string `json:"element"`

	Charge   int  `json:"charge,omitempty"`
	Aromatic bool `json:"aromatic,omitempty"`

	// Isotope is the mass number; zero means unspecified.
	Isotope int `json:"isotope,omitempty"`
}

// Bond is an undirected edge between two atoms.
type Bond struct {
	From  int       `json:"from"`
	To    int       `json:"to"`
	Order BondOrder `json:"order"`
}

// Other returns the endpoint of b that is not atom.
func (b Bond) Other(atom int) int {
	if b.From == atom {
		return b.To
	}
	return b.From
}

type atomPair struct{ lo, hi int }

func pairOf(a, b int) atomPair {
	if a > b {
		a, b = b, a
	}
	return atomPair{lo: a, hi: b}
}

// ─────────────────────────────────────────────────────────────────────────────
// Graph
// ─────────────────────────────────────────────────────────────────────────────

// Graph is an immutable molecule graph with an adjacency index built once at
// construction.
//
// Invariants:
//   - every bond references two distinct, in-range atom indices
//   - at most one bond exists between any pair of atoms
type Graph struct {
	atoms     []Atom
	bonds     []Bond
	adjacency [][]int // atom index -> incident bond indices
}

// NewGraph validates atoms and bonds and builds the adjacency index.  The
// slices are copied.
func NewGraph(atoms []Atom, bonds []Bond) (*Graph, error) {
	g := &Graph{
		atoms:     append([]Atom(nil), atoms...),
		bonds:     append([]Bond(nil), bonds...),
		adjacency: make([][]int, len(atoms)),
	}

	seen := make(map[atomPair]struct{}, len(bonds))
	for i, b := range g.bonds {
		if b.From < 0 || b.From >= len(atoms) || b.To < 0 || b.To >= len(atoms) {
			return nil, fmt.Errorf("molecule: bond %d references atom out of range [0,%d)", i, len(atoms))
		}
		if b.From == b.To {
			return nil, fmt.Errorf("molecule: bond %d is a self-loop on atom %d", i, b.From)
		}
		if !b.Order.Valid() {
			return nil, fmt.Errorf("molecule: bond %d has invalid order %d", i, b.Order)
		}
		key := pairOf(b.From, b.To)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("molecule: duplicate bond between atoms %d and %d", key.lo, key.hi)
		}
		seen[key] = struct{}{}
		g.adjacency[b.From] = append(g.adjacency[b.From], i)
		g.adjacency[b.To] = append(g.adjacency[b.To], i)
	}
	return g, nil
}

// MustGraph is NewGraph for literals in tests and fixtures.  It panics on an
// invalid graph.
func MustGraph(atoms []Atom, bonds []Bond) *Graph {
	g, err := NewGraph(atoms, bonds)
	if err != nil {
		panic(err)
	}
	return g
}

// NumAtoms returns the number of atoms.
func (g *Graph) NumAtoms() int { return len(g.atoms) }

// NumBonds returns the number of bonds.
func (g *Graph) NumBonds() int { return len(g.bonds) }

// Atom returns the atom at index i.
func (g *Graph) Atom(i int) Atom { return g.atoms[i] }

// Bond returns the bond at index i.
func (g *Graph) Bond(i int) Bond { return g.bonds[i] }

// Atoms returns a copy of the atom list.
func (g *Graph) Atoms() []Atom { return append([]Atom(nil), g.atoms...) }

// Bonds returns a copy of the bond list.
func (g *Graph) Bonds() []Bond { return append([]Bond(nil), g.bonds...) }

// Degree returns the number of bonds incident to atom i.
func (g *Graph) Degree(i int) int { return len(g.adjacency[i]) }

// Neighbors returns the atoms bonded to atom i, in bond order.
func (g *Graph) Neighbors(i int) []int {
	out := make([]int, 0, len(g.adjacency[i]))
	for _, bi := range g.adjacency[i] {
		out = append(out, g.bonds[bi].Other(i))
	}
	return out
}

// BondBetween returns the bond joining atoms a and b, if any.
func (g *Graph) BondBetween(a, b int) (Bond, bool) {
	scan, other := a, b
	if len(g.adjacency[b]) < len(g.adjacency[a]) {
		scan, other = b, a
	}
	for _, bi := range g.adjacency[scan] {
		if g.bonds[bi].Other(scan) == other {
			return g.bonds[bi], true
		}
	}
	return Bond{}, false
}

// Extend returns a new graph with extra atoms appended and extra bonds added.
// Extra bond indices address the combined atom list.
func (g *Graph) Extend(atoms []Atom, bonds []Bond) (*Graph, error) {
	allAtoms := append(g.Atoms(), atoms...)
	allBonds := append(g.Bonds(), bonds...)
	return NewGraph(allAtoms, allBonds)
}

// ElementCounts returns the number of atoms per element symbol.
func (g *Graph) ElementCounts() map[string]int {
	counts := make(map[string]int, 8)
	for _, a := range g.atoms {
		counts[a.Element]++
	}
	return counts
}
