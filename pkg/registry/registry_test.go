package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concord-labs/concord/pkg/contracts"
)

func validPrinciples() []contracts.Principle {
	return []contracts.Principle{
		{ID: "p-fair", Category: contracts.CategoryFairness, Weight: 0.8, Mandatory: true, KeywordEvidence: []string{"fair", "equitable"}},
		{ID: "p-priv", Category: contracts.CategoryPrivacy, Weight: 0.6, KeywordEvidence: []string{"privacy", "consent"}},
	}
}

func TestNew_ValidSnapshot(t *testing.T) {
	r, err := New(validPrinciples())
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())

	p, ok := r.Get("p-fair")
	require.True(t, ok)
	assert.True(t, p.Mandatory)

	assert.True(t, r.MandatoryCategory(contracts.CategoryFairness))
	assert.False(t, r.MandatoryCategory(contracts.CategoryPrivacy))
}

func TestNew_RejectsBadWeight(t *testing.T) {
	for _, w := range []float64{0, -0.1, 1.01} {
		_, err := New([]contracts.Principle{
			{ID: "p", Category: contracts.CategorySafety, Weight: w},
		})
		require.Error(t, err)
		assert.True(t, contracts.IsValidation(err), "weight %v must be a validation error", w)
	}
}

func TestNew_RejectsUnknownCategory(t *testing.T) {
	_, err := New([]contracts.Principle{
		{ID: "p", Category: "efficiency", Weight: 0.5},
	})
	require.Error(t, err)
	assert.True(t, contracts.IsValidation(err))
}

func TestNew_RejectsDuplicateID(t *testing.T) {
	_, err := New([]contracts.Principle{
		{ID: "p", Category: contracts.CategorySafety, Weight: 0.5},
		{ID: "p", Category: contracts.CategoryPrivacy, Weight: 0.5},
	})
	require.Error(t, err)
	assert.True(t, contracts.IsValidation(err))
}

func TestNew_SnapshotIsImmutable(t *testing.T) {
	src := validPrinciples()
	r, err := New(src)
	require.NoError(t, err)

	// Mutating the caller's slice must not leak into the snapshot.
	src[0].Weight = 0.1
	p, _ := r.Get("p-fair")
	assert.Equal(t, 0.8, p.Weight)

	// Mutating the returned copy must not leak either.
	got := r.Principles()
	got[0].Weight = 0.2
	p, _ = r.Get("p-fair")
	assert.Equal(t, 0.8, p.Weight)
}

func TestCheckSpecVersion(t *testing.T) {
	r, err := New(validPrinciples())
	require.NoError(t, err)

	assert.NoError(t, r.CheckSpecVersion(contracts.Policy{ID: "a"}))
	assert.NoError(t, r.CheckSpecVersion(contracts.Policy{ID: "a", SpecVersion: "1.2.0"}))

	err = r.CheckSpecVersion(contracts.Policy{ID: "a", SpecVersion: "2.0.0"})
	require.Error(t, err)
	assert.True(t, contracts.IsValidation(err))

	err = r.CheckSpecVersion(contracts.Policy{ID: "a", SpecVersion: "not-a-version"})
	require.Error(t, err)
	assert.True(t, contracts.IsValidation(err))
}
