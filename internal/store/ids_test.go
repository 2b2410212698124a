package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		collection Collection
		id         string
		want       Provenance
	}{
		{CollectionDeals, "crm_0061", ProvenanceExternal},
		{CollectionAccounts, "crm_a1", ProvenanceExternal},
		{CollectionEmployees, "crm_e1", ProvenanceExternal},
		{CollectionDeals, "test_deal_1", ProvenanceSynthetic},
		{CollectionAccounts, "test_acct_1", ProvenanceSynthetic},
		{CollectionEmployees, "test_emp_1", ProvenanceSynthetic},
		// Another collection's synthetic prefix does not count.
		{CollectionDeals, "test_acct_1", ProvenanceUnknown},
		{CollectionEmployees, "test_deal_1", ProvenanceUnknown},
		{CollectionDeals, "testXdealY1", ProvenanceUnknown},
		{CollectionDeals, "", ProvenanceUnknown},
		{Collection("other"), "test_deal_1", ProvenanceUnknown},
	}
	for _, tc := range cases {
		assert.Equalf(t, tc.want, Classify(tc.collection, tc.id), "%s/%s", tc.collection, tc.id)
	}
}

func TestSyntheticPrefixesAreDistinct(t *testing.T) {
	seen := map[string]Collection{}
	for _, c := range Collections {
		prefix := SyntheticPrefix(c)
		assert.NotEmpty(t, prefix)
		assert.NotEqual(t, ExternalPrefix, prefix)
		if other, ok := seen[prefix]; ok {
			t.Fatalf("prefix %q shared by %s and %s", prefix, c, other)
		}
		seen[prefix] = c
	}
}

func TestEqualPtr(t *testing.T) {
	assert.True(t, EqualPtr(nil, nil))
	assert.False(t, EqualPtr(StringPtr("a"), nil))
	assert.False(t, EqualPtr(nil, StringPtr("a")))
	assert.True(t, EqualPtr(StringPtr("a"), StringPtr("a")))
	assert.False(t, EqualPtr(StringPtr("a"), StringPtr("b")))
}
