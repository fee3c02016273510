package domain

// Relationship describes how one domain tends to interact with others.
// Data-driven: insight synthesis reads this graph, it never hard-codes pairs.
type Relationship struct {
	OftenRequires []Domain
	MayInvolve    []Domain
}

var relationships = map[Domain]Relationship{
	Insurance: {
		OftenRequires: []Domain{ConsumerProtection},
		MayInvolve:    []Domain{FamilyLegal, Taxation},
	},
	Property: {
		OftenRequires: []Domain{Taxation},
		MayInvolve:    []Domain{FamilyLegal, BankingFinance},
	},
	Employment: {
		OftenRequires: []Domain{Taxation},
		MayInvolve:    []Domain{FamilyLegal, BankingFinance},
	},
	BusinessCompliance: {
		OftenRequires: []Domain{Taxation},
		MayInvolve:    []Domain{BankingFinance, Property},
	},
	FamilyLegal: {
		OftenRequires: []Domain{Property},
		MayInvolve:    []Domain{Taxation, BankingFinance},
	},
	VehicleTransport: {
		OftenRequires: []Domain{Insurance, Taxation},
		MayInvolve:    []Domain{ConsumerProtection},
	},
	BankingFinance: {
		OftenRequires: []Domain{IdentityDocuments},
		MayInvolve:    []Domain{Taxation, ConsumerProtection},
	},
	ConsumerProtection: {
		MayInvolve: []Domain{Insurance, BankingFinance},
	},
	IdentityDocuments: {
		MayInvolve: []Domain{BankingFinance, Taxation},
	},
}

// Related returns all domains connected to d in the graph, strongest links
// first, without duplicates and without d itself.
func Related(d Domain) []Domain {
	rel, ok := relationships[d]
	if !ok {
		return nil
	}

	seen := map[Domain]bool{d: true}
	var out []Domain
	for _, r := range rel.OftenRequires {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	for _, r := range rel.MayInvolve {
		if !seen[r] {
			seen[r] = true
			out = append(out, r)
		}
	}
	return out
}

// Connected reports whether two domains share an edge in either direction.
func Connected(a, b Domain) bool {
	for _, r := range Related(a) {
		if r == b {
			return true
		}
	}
	for _, r := range Related(b) {
		if r == a {
			return true
		}
	}
	return false
}
