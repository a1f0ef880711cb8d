package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModel() Model {
	return Model{
		Entities: []EntityDescriptor{
			{
				Name:       "Person",
				Supertypes: []string{"Named", "Aged"},
				Properties: []PropertyDescriptor{
					{QName: QName("Named", "name"), Type: PrimitiveType(PrimString), Queryable: true},
					{QName: QName("Person", "age"), Type: PrimitiveType(PrimInt), Queryable: true},
				},
			},
			{Name: "Company"},
		},
		Composites: []CompositeDescriptor{{Name: "Geo"}, {Name: "Address"}},
		Enums:      []EnumDescriptor{{Name: "Color", Constants: []string{"RED"}}},
	}
}

func TestModelFingerprintDeterminism(t *testing.T) {
	fp1, err := ModelFingerprint(sampleModel())
	require.NoError(t, err)
	fp2, err := ModelFingerprint(sampleModel())
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2, "ModelFingerprint must be deterministic")
	assert.Len(t, fp1, 64, "SHA-256 hex is 64 characters")
}

func TestModelFingerprintIgnoresTypeOrder(t *testing.T) {
	m := sampleModel()
	reordered := sampleModel()
	reordered.Entities[0], reordered.Entities[1] = reordered.Entities[1], reordered.Entities[0]
	reordered.Entities[1].Supertypes = []string{"Aged", "Named"}
	reordered.Composites[0], reordered.Composites[1] = reordered.Composites[1], reordered.Composites[0]

	fp1, err := ModelFingerprint(m)
	require.NoError(t, err)
	fp2, err := ModelFingerprint(reordered)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
}

func TestModelFingerprintKeepsMemberOrder(t *testing.T) {
	m := sampleModel()
	swapped := sampleModel()
	props := swapped.Entities[0].Properties
	props[0], props[1] = props[1], props[0]

	fp1, err := ModelFingerprint(m)
	require.NoError(t, err)
	fp2, err := ModelFingerprint(swapped)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2, "member order determines table numbering")
}

func TestModelFingerprintChangesWithModel(t *testing.T) {
	m := sampleModel()
	changed := sampleModel()
	changed.Enums[0].Constants = append(changed.Enums[0].Constants, "BLUE")

	fp1, err := ModelFingerprint(m)
	require.NoError(t, err)
	fp2, err := ModelFingerprint(changed)
	require.NoError(t, err)
	assert.NotEqual(t, fp1, fp2)
}

func TestModelFingerprintNormalizesNames(t *testing.T) {
	// "é" precomposed vs "e" + combining acute accent
	nfc := Model{Entities: []EntityDescriptor{{Name: "Caf\u00e9"}}}
	nfd := Model{Entities: []EntityDescriptor{{Name: "Cafe\u0301"}}}

	fp1, err := ModelFingerprint(nfc)
	require.NoError(t, err)
	fp2, err := ModelFingerprint(nfd)
	require.NoError(t, err)
	assert.Equal(t, fp1, fp2)
}

func TestModelFingerprintDoesNotMutateInput(t *testing.T) {
	m := sampleModel()
	_, err := ModelFingerprint(m)
	require.NoError(t, err)
	assert.Equal(t, "Person", m.Entities[0].Name)
	assert.Equal(t, []string{"Named", "Aged"}, m.Entities[0].Supertypes)
}

func TestHashWithDomainNullSeparator(t *testing.T) {
	// "foo" + 0x00 + "bar" ≠ "foob" + 0x00 + "ar"
	hash1 := hashWithDomain("foo", []byte("bar"))
	hash2 := hashWithDomain("foob", []byte("ar"))

	assert.NotEqual(t, hash1, hash2, "Null separator must prevent boundary confusion")
}

func TestDomainConstants(t *testing.T) {
	assert.Equal(t, "qindex/model/v1", DomainModel)
}
