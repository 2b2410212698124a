package store

import "strings"

// Provenance tags where a record came from. It is derived from the identifier
// prefix and is the only place the prefix convention is interpreted.
type Provenance int

const (
	ProvenanceUnknown Provenance = iota
	ProvenanceExternal
	ProvenanceSynthetic
)

func (p Provenance) String() string {
	switch p {
	case ProvenanceExternal:
		return "external"
	case ProvenanceSynthetic:
		return "synthetic"
	default:
		return "unknown"
	}
}

// Collection names a table the pipeline reads or writes.
type Collection string

const (
	CollectionDeals     Collection = "deals"
	CollectionAccounts  Collection = "merchant_accounts"
	CollectionEmployees Collection = "employees"
)

// Collections lists every collection in purge order: dependents first.
var Collections = []Collection{CollectionDeals, CollectionAccounts, CollectionEmployees}

// ExternalPrefix marks rows imported from the CRM, in every collection.
const ExternalPrefix = "crm_"

const (
	SyntheticDealPrefix     = "test_deal_"
	SyntheticAccountPrefix  = "test_acct_"
	SyntheticEmployeePrefix = "test_emp_"
)

// SyntheticPrefix returns the seed-data prefix reserved for c.
func SyntheticPrefix(c Collection) string {
	switch c {
	case CollectionDeals:
		return SyntheticDealPrefix
	case CollectionAccounts:
		return SyntheticAccountPrefix
	case CollectionEmployees:
		return SyntheticEmployeePrefix
	default:
		return ""
	}
}

// Classify reports the provenance of id within collection c. A synthetic
// prefix belonging to another collection does not count.
func Classify(c Collection, id string) Provenance {
	if strings.HasPrefix(id, ExternalPrefix) {
		return ProvenanceExternal
	}
	if prefix := SyntheticPrefix(c); prefix != "" && strings.HasPrefix(id, prefix) {
		return ProvenanceSynthetic
	}
	return ProvenanceUnknown
}
