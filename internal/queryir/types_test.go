package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qindex/internal/ir"
)

var (
	qName     = ir.QName("Person", "name")
	qEmployer = ir.QName("Person", "employer")
	qParent   = ir.QName("Company", "parent")
	qFriends  = ir.QName("Person", "friends")
	qAddress  = ir.QName("Person", "address")
	qCity     = ir.QName("Address", "city")
)

func TestKind_StringRoundTrip(t *testing.T) {
	for k := KindAnd; k <= KindMatches; k++ {
		parsed, ok := ParseKind(k.String())
		require.True(t, ok, "kind %d", k)
		assert.Equal(t, k, parsed)
	}
	_, ok := ParseKind("between")
	assert.False(t, ok)
	assert.Equal(t, "Kind(99)", Kind(99).String())
}

func TestKind_IsComparison(t *testing.T) {
	for _, k := range []Kind{KindEq, KindNe, KindGe, KindGt, KindLe, KindLt} {
		assert.True(t, k.IsComparison(), k.String())
	}
	for _, k := range []Kind{KindAnd, KindNot, KindPropertyNull, KindContains, KindMatches} {
		assert.False(t, k.IsComparison(), k.String())
	}
}

func TestPredicateKinds(t *testing.T) {
	tests := []struct {
		pred Predicate
		want Kind
	}{
		{AllOf(), KindAnd},
		{AnyOf(), KindOr},
		{Negate(nil), KindNot},
		{Eq(Prop(qName), ir.IRString("x")), KindEq},
		{Lt(Prop(qName), ir.IRString("x")), KindLt},
		{IsNull{Path: Prop(qName)}, KindPropertyNull},
		{IsNotNull{Path: Prop(qName)}, KindPropertyNotNull},
		{IsNull{Path: Assoc(qEmployer)}, KindAssociationNull},
		{IsNotNull{Path: Many(qFriends)}, KindAssociationNotNull},
		{ManyAssociationContains{Path: Many(qFriends)}, KindManyAssociationContains},
		{Contains{}, KindContains},
		{ContainsAll{}, KindContainsAll},
		{Matches{}, KindMatches},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.pred.Kind())
	}
}

func TestPath(t *testing.T) {
	p := Assoc(qEmployer).Assoc(qParent)
	assert.Len(t, p, 2)
	assert.True(t, p.IsIdentity())
	assert.Equal(t, "Person:employer.Company:parent", p.String())

	last, ok := p.Last()
	require.True(t, ok)
	assert.Equal(t, qParent, last.QName)

	assert.True(t, Path{}.IsIdentity())
	assert.Equal(t, "<identity>", Path{}.String())
	assert.False(t, Prop(qAddress).Prop(qCity).IsIdentity())
}

func TestPath_ExtendDoesNotAlias(t *testing.T) {
	base := make(Path, 1, 4)
	base[0] = Step{QName: qAddress, Kind: ir.MemberProperty}

	a := base.Prop(qCity)
	b := base.Prop(ir.QName("Address", "street"))

	assert.Equal(t, qCity, a[1].QName)
	assert.Equal(t, "street", b[1].QName.Name)
}

func TestParsePath(t *testing.T) {
	kinds := map[ir.QualifiedName]ir.MemberKind{
		qEmployer: ir.MemberAssociation,
		qParent:   ir.MemberAssociation,
		qName:     ir.MemberProperty,
	}
	resolve := func(q ir.QualifiedName) (ir.MemberKind, bool) {
		k, ok := kinds[q]
		return k, ok
	}

	p, err := ParsePath("Person:employer.Company:parent", resolve)
	require.NoError(t, err)
	assert.Equal(t, Assoc(qEmployer).Assoc(qParent), p)

	p, err = ParsePath("", resolve)
	require.NoError(t, err)
	assert.Empty(t, p)

	_, err = ParsePath("Person:missing", resolve)
	assert.ErrorContains(t, err, "unknown member")

	_, err = ParsePath("nocolon", resolve)
	assert.Error(t, err)
}

func TestDeref(t *testing.T) {
	eq := Eq(Prop(qName), ir.IRString("x"))
	assert.Equal(t, eq, Deref(&eq))
	assert.Equal(t, eq, Deref(eq))

	var nilAnd *And
	assert.Nil(t, Deref(nilAnd))
}
