package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concord-labs/concord/pkg/contracts"
)

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func TestValidatePolicy_WellFormedDocument(t *testing.T) {
	v := newValidator(t)

	policy, err := v.ValidatePolicy([]byte(`{
		"id": "pol-1",
		"content": "Access requires documented consent.",
		"action": "allow",
		"subject": "clinician",
		"resource": "record",
		"risk_level": "high",
		"spec_version": "1.2.0"
	}`))
	require.NoError(t, err)

	assert.Equal(t, "pol-1", policy.ID)
	assert.Equal(t, contracts.ActionAllow, policy.Action)
	assert.Equal(t, contracts.RiskHigh, policy.Risk)
}

func TestValidatePolicy_MissingRequiredField(t *testing.T) {
	v := newValidator(t)

	_, err := v.ValidatePolicy([]byte(`{"id": "pol-1", "content": "x"}`))
	require.Error(t, err)
	assert.True(t, contracts.IsValidation(err))
}

func TestValidatePolicy_BadActionEnum(t *testing.T) {
	v := newValidator(t)

	_, err := v.ValidatePolicy([]byte(`{"id": "pol-1", "content": "x", "action": "maybe"}`))
	require.Error(t, err)

	var ve *contracts.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Field, "action")
}

func TestValidatePolicy_BadSpecVersionFormat(t *testing.T) {
	v := newValidator(t)

	_, err := v.ValidatePolicy([]byte(`{"id": "pol-1", "content": "x", "action": "deny", "spec_version": "v1"}`))
	require.Error(t, err)
	assert.True(t, contracts.IsValidation(err))
}

func TestValidatePolicy_NotJSON(t *testing.T) {
	v := newValidator(t)

	_, err := v.ValidatePolicy([]byte(`{{{`))
	require.Error(t, err)

	var ve *contracts.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "policy", ve.Field)
}

func TestValidatePolicy_UnknownFieldRejected(t *testing.T) {
	v := newValidator(t)

	_, err := v.ValidatePolicy([]byte(`{"id": "pol-1", "content": "x", "action": "deny", "extra": true}`))
	require.Error(t, err)
	assert.True(t, contracts.IsValidation(err))
}
