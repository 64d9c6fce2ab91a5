package main

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventDoc(t *testing.T) map[string]any {
	t.Helper()
	raw := `{
		"user_id": 123456,
		"wallet_address": "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK",
		"wallet_name": "main",
		"signature": "sig-B",
		"failed": false,
		"transfers": [
			{"mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
			 "symbol": "USDC", "direction": "buy", "amount": 50.0,
			 "native": false, "verified": true}
		]
	}`
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestCompileJQFiltersInvalid(t *testing.T) {
	_, err := compileJQFilters([]string{".transfers | length"})
	require.NoError(t, err)

	_, err = compileJQFilters([]string{"..[invalid"})
	assert.Error(t, err)
}

func TestMatchesAll(t *testing.T) {
	doc := eventDoc(t)

	filters, err := compileJQFilters([]string{
		`.wallet_name == "main"`,
		`.transfers | length > 0`,
		`.transfers[0].direction == "buy"`,
	})
	require.NoError(t, err)
	assert.True(t, matchesAll(filters, doc))

	filters, err = compileJQFilters([]string{`.failed`})
	require.NoError(t, err)
	assert.False(t, matchesAll(filters, doc))

	// No filters means everything matches.
	assert.True(t, matchesAll(nil, doc))
}

func TestIsTruthy(t *testing.T) {
	assert.False(t, isTruthy(nil))
	assert.False(t, isTruthy(false))
	assert.True(t, isTruthy(true))
	assert.True(t, isTruthy(0))
	assert.True(t, isTruthy(""))
	assert.True(t, isTruthy([]any{}))
}
