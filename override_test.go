package dnsrelay

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOverrideExactMatch(t *testing.T) {
	tbl, err := NewOverrideTable([]Rule{
		{Domain: "example.com", Type: TypeA, Target: "10.0.0.1"},
	}, 60)
	require.NoError(t, err)

	answers, blackhole, ok := tbl.Resolve("example.com", TypeA)
	require.True(t, ok)
	require.False(t, blackhole)
	require.Len(t, answers, 1)
	addr, has := answers[0].A()
	require.True(t, has)
	require.Equal(t, [4]byte{10, 0, 0, 1}, addr)
}

func TestOverrideMultipleTargetsFanOut(t *testing.T) {
	tbl, err := NewOverrideTable([]Rule{
		{Domain: "example.com", Type: TypeA, Target: "10.0.0.1"},
		{Domain: "example.com", Type: TypeA, Target: "10.0.0.2"},
	}, 60)
	require.NoError(t, err)

	answers, _, ok := tbl.Resolve("example.com", TypeA)
	require.True(t, ok)
	require.Len(t, answers, 2)
}

func TestOverrideExactBeatsWildcardAndParent(t *testing.T) {
	tbl, err := NewOverrideTable([]Rule{
		{Domain: "example.com", Type: TypeA, Target: "1.1.1.1"},
		{Domain: "*.example.com", Type: TypeA, Target: "2.2.2.2"},
		{Domain: "foo.example.com", Type: TypeA, Target: "3.3.3.3"},
	}, 60)
	require.NoError(t, err)

	answers, _, ok := tbl.Resolve("foo.example.com", TypeA)
	require.True(t, ok)
	addr, _ := answers[0].A()
	require.Equal(t, [4]byte{3, 3, 3, 3}, addr, "exact match on foo.example.com must win")

	answers, _, ok = tbl.Resolve("bar.example.com", TypeA)
	require.True(t, ok)
	addr, _ = answers[0].A()
	require.Equal(t, [4]byte{2, 2, 2, 2}, addr, "wildcard match must win over no match")
}

func TestOverrideWildcardBeatsParentDomain(t *testing.T) {
	tbl, err := NewOverrideTable([]Rule{
		{Domain: "example.com", Type: TypeA, Target: "1.1.1.1"}, // acts as parent-domain rule
		{Domain: "*.sub.example.com", Type: TypeA, Target: "2.2.2.2"},
	}, 60)
	require.NoError(t, err)

	answers, _, ok := tbl.Resolve("host.sub.example.com", TypeA)
	require.True(t, ok)
	addr, _ := answers[0].A()
	require.Equal(t, [4]byte{2, 2, 2, 2}, addr)
}

func TestOverrideLongestSuffixWildcardWins(t *testing.T) {
	tbl, err := NewOverrideTable([]Rule{
		{Domain: "*.example.com", Type: TypeA, Target: "1.1.1.1"},
		{Domain: "*.sub.example.com", Type: TypeA, Target: "2.2.2.2"},
	}, 60)
	require.NoError(t, err)

	answers, _, ok := tbl.Resolve("host.sub.example.com", TypeA)
	require.True(t, ok)
	addr, _ := answers[0].A()
	require.Equal(t, [4]byte{2, 2, 2, 2}, addr, "deeper wildcard suffix must win")
}

func TestOverrideBlackhole(t *testing.T) {
	tbl, err := NewOverrideTable([]Rule{
		{Domain: "ads.example.com", Type: TypeA, Target: "blackhole"},
	}, 60)
	require.NoError(t, err)

	answers, blackhole, ok := tbl.Resolve("ads.example.com", TypeA)
	require.True(t, ok)
	require.True(t, blackhole)
	require.Nil(t, answers)

	rr, has := BlackholeAddress("ads.example.com", TypeA, 60)
	require.True(t, has)
	addr, _ := rr.A()
	require.Equal(t, [4]byte{0, 0, 0, 0}, addr)
}

func TestOverrideCNAMEChainResolvesLocalTarget(t *testing.T) {
	tbl, err := NewOverrideTable([]Rule{
		{Domain: "alias.example.com", Type: TypeCNAME, Target: "real.example.com"},
		{Domain: "real.example.com", Type: TypeA, Target: "10.0.0.9"},
	}, 60)
	require.NoError(t, err)

	answers, blackhole, ok := tbl.Resolve("alias.example.com", TypeA)
	require.True(t, ok)
	require.False(t, blackhole)
	require.Len(t, answers, 2)
	target, has := answers[0].CNAME()
	require.True(t, has)
	require.Equal(t, "real.example.com", target)
	addr, has := answers[1].A()
	require.True(t, has)
	require.Equal(t, [4]byte{10, 0, 0, 9}, addr)
}

func TestOverrideMiss(t *testing.T) {
	tbl, err := NewOverrideTable([]Rule{
		{Domain: "example.com", Type: TypeA, Target: "1.1.1.1"},
	}, 60)
	require.NoError(t, err)

	_, _, ok := tbl.Resolve("nowhere.net", TypeA)
	require.False(t, ok)
}

func TestOverrideRejectsInvalidAddress(t *testing.T) {
	_, err := NewOverrideTable([]Rule{
		{Domain: "example.com", Type: TypeA, Target: "not-an-ip"},
	}, 60)
	require.Error(t, err)
}

func TestOverrideRejectsFamilyMismatch(t *testing.T) {
	_, err := NewOverrideTable([]Rule{
		{Domain: "example.com", Type: TypeAAAA, Target: "10.0.0.1"},
	}, 60)
	require.Error(t, err)
}
