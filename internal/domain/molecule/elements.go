package molecule

// elements is the set of accepted element symbols, periods 1 through 7.
var elements = func() map[string]struct{} {
	symbols := []string{
		"H", "He",
		"Li", "Be", "B", "C", "N", "O", "F", "Ne",
		"Na", "Mg", "Al", "Si", "P", "S", "Cl", "Ar",
		"K", "Ca", "Sc", "Ti", "V", "Cr", "Mn", "Fe", "Co", "Ni", "Cu", "Zn",
		"Ga", "Ge", "As", "Se", "Br", "Kr",
		"Rb", "Sr", "Y", "Zr", "Nb", "Mo", "Tc", "Ru", "Rh", "Pd", "Ag", "Cd",
		"In", "Sn", "Sb", "Te", "I", "Xe",
		"Cs", "Ba", "La", "Ce", "Pr", "Nd", "Pm", "Sm", "Eu", "Gd", "Tb", "Dy",
		"Ho", "Er", "Tm", "Yb", "Lu", "Hf", "Ta", "W", "Re", "Os", "Ir", "Pt",
		"Au", "Hg", "Tl", "Pb", "Bi", "Po", "At", "Rn",
		"Fr", "Ra", "Ac", "Th", "Pa", "U", "Np", "Pu", "Am", "Cm", "Bk", "Cf",
		"Es", "Fm", "Md", "No", "Lr", "Rf", "Db", "Sg", "Bh", "Hs", "Mt", "Ds",
		"Rg", "Cn", "Nh", "Fl", "Mc", "Lv", "Ts", "Og",
	}
	m := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		m[s] = struct{}{}
	}
	return m
}()

// organicSubset lists the elements that may appear outside brackets.
var organicSubset = map[string]struct{}{
	"B": {}, "C": {}, "N": {}, "O": {}, "P": {}, "S": {}, "F": {}, "Cl": {}, "Br": {}, "I": {},
}

// aromaticOrganic lists the lowercase symbols allowed outside brackets.
var aromaticOrganic = map[byte]string{
	'b': "B", 'c': "C", 'n': "N", 'o': "O", 'p': "P", 's': "S",
}

// aromaticBracket lists the two-letter lowercase symbols allowed inside
// brackets in addition to aromaticOrganic.
var aromaticBracket = map[string]string{
	"se": "Se", "as": "As", "te": "Te",
}

// IsElement reports whether symbol is a known element.
func IsElement(symbol string) bool {
	_, ok := elements[symbol]
	return ok
}
