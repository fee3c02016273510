// Package domain holds the closed, versioned set of legal/administrative
// domains the classifier is allowed to output, plus the relationship graph
// used for cross-domain insights.
package domain

import "strings"

// Domain is one category of legal/administrative procedure.
type Domain string

const (
	Insurance          Domain = "Insurance"
	IdentityDocuments  Domain = "Identity Documents"
	Property           Domain = "Property"
	Taxation           Domain = "Taxation"
	Employment         Domain = "Employment"
	BusinessCompliance Domain = "Business Compliance"
	FamilyLegal        Domain = "Family & Legal"
	ConsumerProtection Domain = "Consumer Protection"
	VehicleTransport   Domain = "Vehicle & Transport"
	BankingFinance     Domain = "Banking & Finance"
	General            Domain = "General"
)

// Info describes one domain for prompt construction and keyword fallback.
type Info struct {
	Description string
	SubDomains  []string
	Keywords    []string
}

// taxonomy is the single source of truth for valid domains. Adding a domain
// means adding an entry here; classification output is validated against it.
var taxonomy = map[Domain]Info{
	Insurance: {
		Description: "Insurance policies, claims, disputes, and procedures",
		SubDomains:  []string{"Motor Insurance", "Health Insurance", "Life Insurance", "Property Insurance"},
		Keywords:    []string{"insurance", "claim", "policy", "premium", "coverage", "insurer"},
	},
	IdentityDocuments: {
		Description: "Government identity documents and verification",
		SubDomains:  []string{"Aadhaar", "PAN Card", "Passport", "Voter ID", "Driving License"},
		Keywords:    []string{"aadhaar", "pan", "passport", "voter id", "identity", "verification"},
	},
	Property: {
		Description: "Property transactions, registration, and disputes",
		SubDomains:  []string{"Registration", "Disputes", "Rental", "Sale/Purchase", "Mutation"},
		Keywords:    []string{"property", "land", "house", "registration", "deed", "rental", "lease"},
	},
	Taxation: {
		Description: "Tax filing, payments, and compliance",
		SubDomains:  []string{"Income Tax", "GST", "Property Tax", "TDS"},
		Keywords:    []string{"tax", "itr", "gst", "income tax", "tds", "refund"},
	},
	Employment: {
		Description: "Employment matters, benefits, and disputes",
		SubDomains:  []string{"PF/ESI", "Termination", "Disputes", "Contracts"},
		Keywords:    []string{"employment", "job", "pf", "esi", "salary", "termination", "resignation"},
	},
	BusinessCompliance: {
		Description: "Business registration and regulatory compliance",
		SubDomains:  []string{"Registration", "Licenses", "GST", "ROC Compliance"},
		Keywords:    []string{"business", "company", "license", "compliance"},
	},
	FamilyLegal: {
		Description: "Family law matters and legal procedures",
		SubDomains:  []string{"Marriage", "Divorce", "Succession", "Adoption"},
		Keywords:    []string{"marriage", "divorce", "will", "inheritance", "adoption", "custody"},
	},
	ConsumerProtection: {
		Description: "Consumer rights and complaint resolution",
		SubDomains:  []string{"Complaints", "Refunds", "Product Issues", "Service Issues"},
		Keywords:    []string{"complaint", "refund", "defective", "consumer", "product", "service"},
	},
	VehicleTransport: {
		Description: "Vehicle registration, licenses, and transport matters",
		SubDomains:  []string{"Registration", "License", "Transfer", "Challan"},
		Keywords:    []string{"vehicle", "car", "bike", "rc", "challan"},
	},
	BankingFinance: {
		Description: "Banking services and financial matters",
		SubDomains:  []string{"Accounts", "Loans", "Disputes", "KYC"},
		Keywords:    []string{"bank", "loan", "account", "kyc", "credit", "debit"},
	},
	General: {
		Description: "General administrative queries that fit no specific domain",
	},
}

// All returns every domain except General, in a stable order suitable for
// prompt construction.
func All() []Domain {
	return []Domain{
		Insurance, IdentityDocuments, Property, Taxation, Employment,
		BusinessCompliance, FamilyLegal, ConsumerProtection,
		VehicleTransport, BankingFinance,
	}
}

// Lookup returns the Info for a domain.
func Lookup(d Domain) (Info, bool) {
	info, ok := taxonomy[d]
	return info, ok
}

// Valid reports whether d is a member of the taxonomy.
func Valid(d Domain) bool {
	_, ok := taxonomy[d]
	return ok
}

// Normalize maps a model-reported domain name onto the closed set. Exact
// matches win; otherwise substring and keyword matching pick the closest
// domain, falling back to General.
func Normalize(name string) Domain {
	if Valid(Domain(name)) {
		return Domain(name)
	}

	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return General
	}

	for _, d := range All() {
		dl := strings.ToLower(string(d))
		if strings.Contains(lower, dl) || strings.Contains(dl, lower) {
			return d
		}
	}

	for _, d := range All() {
		info := taxonomy[d]
		for _, kw := range info.Keywords {
			if strings.Contains(lower, kw) {
				return d
			}
		}
	}

	return General
}

// HighRisk lists domains whose queries carry elevated legal stakes. Used by
// the risk assessor.
func HighRisk(d Domain) bool {
	switch d {
	case FamilyLegal, Property, Employment:
		return true
	}
	return false
}
