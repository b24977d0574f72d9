package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorCompiles(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)
	require.NotNil(t, v)

	assert.Error(t, v.Validate("unknown", []byte(`{}`)))
	assert.Error(t, v.Validate(Vote, []byte(`not json`)))
}

func TestProposeSchema(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	valid := `{
		"name": "Fund the grants committee",
		"body": "Allocate the quarterly budget.",
		"choices": ["For", "Against"],
		"start": 1700000000,
		"end": 1700600000,
		"snapshot": 12345678,
		"metadata": {}
	}`
	assert.NoError(t, v.Validate(Propose, []byte(valid)))

	// Snapshot may also arrive as a block-number string.
	assert.NoError(t, v.Validate(Propose, []byte(`{
		"name": "n", "body": "", "choices": ["a","b"],
		"start": 1700000000, "end": 1700600000, "snapshot": "12345678"
	}`)))

	invalid := map[string]string{
		"missing name":     `{"body":"b","choices":["a","b"],"start":1700000000,"end":1700600000,"snapshot":1}`,
		"one choice":       `{"name":"n","body":"b","choices":["a"],"start":1700000000,"end":1700600000,"snapshot":1}`,
		"unknown key":      `{"name":"n","body":"b","choices":["a","b"],"start":1700000000,"end":1700600000,"snapshot":1,"surprise":true}`,
		"start not a time": `{"name":"n","body":"b","choices":["a","b"],"start":5,"end":1700600000,"snapshot":1}`,
	}
	for name, payload := range invalid {
		assert.Error(t, v.Validate(Propose, []byte(payload)), name)
	}
}

func TestVoteSchema(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	assert.NoError(t, v.Validate(Vote, []byte(`{"proposal":"0xabc","choice":1}`)))
	assert.NoError(t, v.Validate(Vote, []byte(`{"proposal":"0xabc","choice":[1,3]}`)))
	assert.NoError(t, v.Validate(Vote, []byte(`{"proposal":"0xabc","choice":{"1":0.7,"2":0.3},"metadata":{}}`)))

	invalid := map[string]string{
		"missing proposal": `{"choice":1}`,
		"zero choice":      `{"proposal":"0xabc","choice":0}`,
		"string choice":    `{"proposal":"0xabc","choice":"yes"}`,
		"unknown key":      `{"proposal":"0xabc","choice":1,"surprise":true}`,
	}
	for name, payload := range invalid {
		assert.Error(t, v.Validate(Vote, []byte(payload)), name)
	}
}

func TestSpaceSchema(t *testing.T) {
	v, err := NewValidator()
	require.NoError(t, err)

	assert.NoError(t, v.Validate(Space, []byte(`{"name":"Demo"}`)))
	assert.NoError(t, v.Validate(Space, []byte(`{
		"name": "Demo", "network": "1", "symbol": "DEMO",
		"admins": ["0xAAA"], "members": [],
		"strategies": [{"name":"erc20-balance-of"}],
		"plugins": {}, "filters": {}, "private": false
	}`)))

	// Unknown keys are allowed in settings documents.
	assert.NoError(t, v.Validate(Space, []byte(`{"name":"Demo","custom":"kept"}`)))

	assert.Error(t, v.Validate(Space, []byte(`{"about":"no name"}`)))
	assert.Error(t, v.Validate(Space, []byte(`{"name":""}`)))
	assert.Error(t, v.Validate(Space, []byte(`{"name":"Demo","strategies":[]}`)))
}
