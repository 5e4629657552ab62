package molecule

import (
	"fmt"
	"sort"
)

// ParseError reports why a SMILES string was rejected.  Position is the
// 0-based byte offset of the offending character.
type ParseError struct {
	Position int
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid SMILES at position %d: %s", e.Position, e.Message)
}

// Unwrap lets callers test for ErrInvalidNotation with errors.Is.
func (e *ParseError) Unwrap() error { return ErrInvalidNotation }

// Parse converts a restricted SMILES string into a Graph.  It accepts the
// organic subset, aromatic lowercase atoms, bracket atoms (isotope, element,
// chirality, hydrogen count, charge, atom class), the bond symbols - = # : / \,
// branches, ring closures (0-9 and %nn) and dot-separated fragments.
//
// Chirality, explicit hydrogen counts, directional bonds and atom classes are
// accepted but not represented in the graph.  Any error is reported as a
// *ParseError and no partial graph is returned.
func Parse(smiles string) (*Graph, error) {
	if smiles == "" {
		return nil, &ParseError{Position: 0, Message: "empty input"}
	}
	p := &parser{
		src:    smiles,
		cursor: -1,
		rings:  make(map[int]pendingRing),
		pairs:  make(map[atomPair]struct{}),
		dotPos: -1,
	}
	if err := p.run(); err != nil {
		return nil, err
	}
	// The parser already enforces every graph invariant; NewGraph only builds
	// the adjacency index here.
	return NewGraph(p.atoms, p.bonds)
}

type pendingRing struct {
	atom  int
	order BondOrder // zero when no explicit bond symbol preceded the digit
	pos   int
}

type branch struct {
	cursor int
	pos    int
	atoms  int // atom count when the branch opened
}

type parser struct {
	src string
	pos int

	atoms []Atom
	bonds []Bond
	pairs map[atomPair]struct{}

	cursor   int
	branches []branch
	rings    map[int]pendingRing

	bond    BondOrder // pending explicit bond, zero when none
	bondPos int
	dotPos  int // position of a '.' awaiting its next atom, -1 when none
}

func (p *parser) fail(pos int, format string, args ...interface{}) error {
	return &ParseError{Position: pos, Message: fmt.Sprintf(format, args...)}
}

func (p *parser) run() error {
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		switch {
		case c == '(':
			if err := p.openBranch(); err != nil {
				return err
			}
		case c == ')':
			if err := p.closeBranch(); err != nil {
				return err
			}
		case c == '.':
			if err := p.dot(); err != nil {
				return err
			}
		case isBondSymbol(c):
			if err := p.bondSymbol(c); err != nil {
				return err
			}
		case isDigit(c) || c == '%':
			if err := p.ringClosure(); err != nil {
				return err
			}
		case c == '[':
			if err := p.bracketAtom(); err != nil {
				return err
			}
		default:
			if err := p.organicAtom(); err != nil {
				return err
			}
		}
	}
	return p.finish()
}

func (p *parser) finish() error {
	if p.bond != 0 {
		return p.fail(p.bondPos, "bond symbol %q is not followed by an atom", p.src[p.bondPos])
	}
	if p.dotPos >= 0 {
		return p.fail(p.dotPos, "'.' is not followed by an atom")
	}
	if n := len(p.branches); n > 0 {
		return p.fail(p.branches[n-1].pos, "unbalanced '('")
	}
	if len(p.rings) > 0 {
		open := make([]pendingRing, 0, len(p.rings))
		for _, r := range p.rings {
			open = append(open, r)
		}
		sort.Slice(open, func(i, j int) bool { return open[i].pos < open[j].pos })
		return p.fail(open[0].pos, "unclosed ring bond")
	}
	if len(p.atoms) == 0 {
		return p.fail(0, "no atoms")
	}
	return nil
}

// ── structural tokens ────────────────────────────────────────────────────────

func (p *parser) openBranch() error {
	if p.cursor < 0 {
		return p.fail(p.pos, "branch opened before any atom")
	}
	if p.bond != 0 {
		return p.fail(p.bondPos, "bond symbol %q is not followed by an atom", p.src[p.bondPos])
	}
	p.branches = append(p.branches, branch{cursor: p.cursor, pos: p.pos, atoms: len(p.atoms)})
	p.pos++
	return nil
}

func (p *parser) closeBranch() error {
	n := len(p.branches)
	if n == 0 {
		return p.fail(p.pos, "unbalanced ')'")
	}
	if p.bond != 0 {
		return p.fail(p.bondPos, "bond symbol %q is not followed by an atom", p.src[p.bondPos])
	}
	if p.dotPos >= 0 {
		return p.fail(p.dotPos, "'.' is not followed by an atom")
	}
	top := p.branches[n-1]
	if len(p.atoms) == top.atoms {
		return p.fail(top.pos, "empty branch")
	}
	p.branches = p.branches[:n-1]
	p.cursor = top.cursor
	p.pos++
	return nil
}

func (p *parser) dot() error {
	if p.cursor < 0 {
		return p.fail(p.pos, "unexpected '.'")
	}
	if p.bond != 0 {
		return p.fail(p.bondPos, "bond symbol %q is not followed by an atom", p.src[p.bondPos])
	}
	p.cursor = -1
	p.dotPos = p.pos
	p.pos++
	return nil
}

func (p *parser) bondSymbol(c byte) error {
	if p.cursor < 0 {
		return p.fail(p.pos, "bond symbol %q has no preceding atom", c)
	}
	if p.bond != 0 {
		return p.fail(p.pos, "consecutive bond symbols")
	}
	p.bond = bondOrderFor(c)
	p.bondPos = p.pos
	p.pos++
	return nil
}

func (p *parser) ringClosure() error {
	start := p.pos
	var digit int
	if p.src[p.pos] == '%' {
		if p.pos+2 >= len(p.src) || !isDigit(p.src[p.pos+1]) || !isDigit(p.src[p.pos+2]) {
			return p.fail(start, "'%%' must be followed by two digits")
		}
		digit = int(p.src[p.pos+1]-'0')*10 + int(p.src[p.pos+2]-'0')
		p.pos += 3
	} else {
		digit = int(p.src[p.pos] - '0')
		p.pos++
	}
	if p.cursor < 0 {
		return p.fail(start, "ring closure has no preceding atom")
	}
	if n := len(p.branches); n > 0 && len(p.atoms) == p.branches[n-1].atoms {
		return p.fail(start, "ring closure at the start of a branch")
	}

	explicit := p.bond
	p.bond = 0

	open, ok := p.rings[digit]
	if !ok {
		p.rings[digit] = pendingRing{atom: p.cursor, order: explicit, pos: start}
		return nil
	}
	delete(p.rings, digit)

	if open.atom == p.cursor {
		return p.fail(start, "ring closure bonds an atom to itself")
	}
	order := open.order
	switch {
	case order == 0:
		order = explicit
	case explicit != 0 && explicit != order:
		return p.fail(start, "conflicting bond orders on ring closure")
	}
	if order == 0 {
		order = implicitOrder(p.atoms[open.atom], p.atoms[p.cursor])
	}
	return p.addBond(open.atom, p.cursor, order, start)
}

// ── atoms ────────────────────────────────────────────────────────────────────

func (p *parser) organicAtom() error {
	start := p.pos
	c := p.src[p.pos]

	if p.pos+1 < len(p.src) {
		two := p.src[p.pos : p.pos+2]
		if two == "Cl" || two == "Br" {
			p.pos += 2
			return p.addAtom(Atom{Element: two}, start)
		}
	}
	if isUpper(c) {
		// "Na" cannot be N followed by an aromatic atom, so it names sodium
		// outside brackets.  "Co" stays C bonded to aromatic o.
		if p.pos+1 < len(p.src) && isLower(p.src[p.pos+1]) {
			two := p.src[p.pos : p.pos+2]
			if _, aromatic := aromaticOrganic[p.src[p.pos+1]]; !aromatic && IsElement(two) {
				return p.fail(start, "element %q must be written in brackets", two)
			}
		}
		sym := string(c)
		if _, ok := organicSubset[sym]; ok {
			p.pos++
			return p.addAtom(Atom{Element: sym}, start)
		}
		if IsElement(sym) {
			return p.fail(start, "element %q must be written in brackets", sym)
		}
		return p.fail(start, "unknown element symbol %q", sym)
	}
	if sym, ok := aromaticOrganic[c]; ok {
		p.pos++
		return p.addAtom(Atom{Element: sym, Aromatic: true}, start)
	}
	if isLower(c) {
		return p.fail(start, "unknown element symbol %q", string(c))
	}
	return p.fail(start, "unexpected character %q", c)
}

func (p *parser) bracketAtom() error {
	open := p.pos
	p.pos++ // '['

	var atom Atom
	if n, ok := p.number(); ok {
		if n == 0 {
			return p.fail(open+1, "isotope must be positive")
		}
		atom.Isotope = n
	}

	if p.pos >= len(p.src) {
		return p.fail(open, "unterminated bracket atom")
	}
	symPos := p.pos
	sym, aromatic, ok := p.bracketSymbol()
	if !ok {
		if p.pos < len(p.src) && isLetter(p.src[p.pos]) {
			return p.fail(symPos, "unknown element symbol %q", p.src[p.pos:p.pos+1])
		}
		return p.fail(symPos, "bracket atom is missing an element symbol")
	}
	atom.Element = sym
	atom.Aromatic = aromatic

	// Chirality: @, @@ and the @TH/@AL/@SP/@TB/@OH classes are skipped.
	for p.pos < len(p.src) && p.src[p.pos] == '@' {
		p.pos++
	}
	if p.pos+1 < len(p.src) && isChiralClass(p.src[p.pos:p.pos+2]) {
		p.pos += 2
		p.number()
	}

	// Hydrogen count.
	if p.pos < len(p.src) && p.src[p.pos] == 'H' {
		p.pos++
		p.number()
	}

	// Charge: +, ++, +n, -, --, -n.
	if p.pos < len(p.src) && (p.src[p.pos] == '+' || p.src[p.pos] == '-') {
		sign := 1
		if p.src[p.pos] == '-' {
			sign = -1
		}
		sc := p.src[p.pos]
		p.pos++
		if n, ok := p.number(); ok {
			atom.Charge = sign * n
		} else {
			count := 1
			for p.pos < len(p.src) && p.src[p.pos] == sc {
				count++
				p.pos++
			}
			atom.Charge = sign * count
		}
	}

	// Atom class.
	if p.pos < len(p.src) && p.src[p.pos] == ':' {
		p.pos++
		if _, ok := p.number(); !ok {
			return p.fail(p.pos, "atom class must be a number")
		}
	}

	if p.pos >= len(p.src) {
		return p.fail(open, "unterminated bracket atom")
	}
	if p.src[p.pos] != ']' {
		return p.fail(p.pos, "unexpected character %q in bracket atom", p.src[p.pos])
	}
	p.pos++
	return p.addAtom(atom, open)
}

// bracketSymbol reads an element symbol inside brackets, preferring the
// two-letter reading when it names a known element.
func (p *parser) bracketSymbol() (string, bool, bool) {
	c := p.src[p.pos]
	if isUpper(c) {
		if p.pos+1 < len(p.src) && isLower(p.src[p.pos+1]) {
			two := p.src[p.pos : p.pos+2]
			if IsElement(two) {
				p.pos += 2
				return two, false, true
			}
		}
		one := string(c)
		if IsElement(one) {
			p.pos++
			return one, false, true
		}
		return "", false, false
	}
	if p.pos+1 < len(p.src) {
		if sym, ok := aromaticBracket[p.src[p.pos:p.pos+2]]; ok {
			p.pos += 2
			return sym, true, true
		}
	}
	if sym, ok := aromaticOrganic[c]; ok {
		p.pos++
		return sym, true, true
	}
	return "", false, false
}

func (p *parser) addAtom(a Atom, pos int) error {
	idx := len(p.atoms)
	p.atoms = append(p.atoms, a)
	p.dotPos = -1
	if p.cursor >= 0 {
		order := p.bond
		if order == 0 {
			order = implicitOrder(p.atoms[p.cursor], a)
		}
		if err := p.addBond(p.cursor, idx, order, pos); err != nil {
			return err
		}
	}
	p.bond = 0
	p.cursor = idx
	return nil
}

func (p *parser) addBond(from, to int, order BondOrder, pos int) error {
	key := pairOf(from, to)
	if _, dup := p.pairs[key]; dup {
		return p.fail(pos, "duplicate bond between atoms %d and %d", key.lo, key.hi)
	}
	p.pairs[key] = struct{}{}
	p.bonds = append(p.bonds, Bond{From: from, To: to, Order: order})
	return nil
}

// number consumes a run of decimal digits.
func (p *parser) number() (int, bool) {
	start := p.pos
	n := 0
	for p.pos < len(p.src) && isDigit(p.src[p.pos]) && p.pos-start < 6 {
		n = n*10 + int(p.src[p.pos]-'0')
		p.pos++
	}
	return n, p.pos > start
}

// ── character classes ────────────────────────────────────────────────────────

// implicitOrder is the order of a bond written without a symbol.
func implicitOrder(a, b Atom) BondOrder {
	if a.Aromatic && b.Aromatic {
		return BondAromatic
	}
	return BondSingle
}

func bondOrderFor(c byte) BondOrder {
	switch c {
	case '=':
		return BondDouble
	case '#':
		return BondTriple
	case ':':
		return BondAromatic
	default: // '-', '/', '\'
		return BondSingle
	}
}

func isBondSymbol(c byte) bool {
	switch c {
	case '-', '=', '#', ':', '/', '\\':
		return true
	}
	return false
}

func isChiralClass(s string) bool {
	switch s {
	case "TH", "AL", "SP", "TB", "OH":
		return true
	}
	return false
}

func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isUpper(c byte) bool  { return c >= 'A' && c <= 'Z' }
func isLower(c byte) bool  { return c >= 'a' && c <= 'z' }
func isLetter(c byte) bool { return isUpper(c) || isLower(c) }
