package solana

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountKey_UnmarshalString(t *testing.T) {
	var key AccountKey
	err := json.Unmarshal([]byte(`"DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK"`), &key)
	require.NoError(t, err)
	assert.Equal(t, "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK", key.Address)
}

func TestAccountKey_UnmarshalObject(t *testing.T) {
	var key AccountKey
	err := json.Unmarshal([]byte(`{"pubkey":"DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK","signer":true,"writable":true}`), &key)
	require.NoError(t, err)
	assert.Equal(t, "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK", key.Address)
}

func TestAccountKey_UnmarshalInvalid(t *testing.T) {
	var key AccountKey
	err := json.Unmarshal([]byte(`{"signer":true}`), &key)
	require.Error(t, err)
}

func TestDecodeRecord_StringKeys(t *testing.T) {
	payload := `{
		"slot": 12345,
		"blockTime": 1700000000,
		"meta": {
			"err": null,
			"preBalances": [2000000000, 500000000],
			"postBalances": [1999000000, 501000000],
			"preTokenBalances": [],
			"postTokenBalances": []
		},
		"transaction": {
			"signatures": ["5j7s6NiJS3JAkvgkoc18WVAsiSaci2pxB2A6ueCJP4tprA2TFg9wSyTLeYouxPBJEMzJinENTkpA52YStRW5Dia7"],
			"message": {
				"accountKeys": [
					"DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK",
					"CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM"
				]
			}
		}
	}`

	rec, err := DecodeRecord([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, uint64(12345), rec.Slot)
	assert.False(t, rec.Failed)
	require.Len(t, rec.AccountKeys, 2)
	assert.Equal(t, "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK", rec.AccountKeys[0].Address)
	assert.Equal(t, 0, rec.SubjectIndex("DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK"))
	assert.Equal(t, -1, rec.SubjectIndex("missing"))
	assert.True(t, rec.HasBalanceMeta())
}

func TestDecodeRecord_ObjectKeys(t *testing.T) {
	// jsonParsed encoding wraps each account key in an object.
	payload := `{
		"slot": 99,
		"meta": {
			"err": {"InstructionError": [0, "Custom"]},
			"preBalances": [1000],
			"postBalances": [900],
			"preTokenBalances": [
				{
					"accountIndex": 1,
					"mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
					"owner": "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK",
					"uiTokenAmount": {"amount": "100000000", "decimals": 6, "uiAmount": 100.0, "uiAmountString": "100"}
				}
			],
			"postTokenBalances": [
				{
					"accountIndex": 1,
					"mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
					"owner": "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK",
					"uiTokenAmount": {"amount": "150000000", "decimals": 6, "uiAmount": 150.0, "uiAmountString": "150"}
				}
			]
		},
		"transaction": {
			"signatures": ["2TgM4N8qCMqLvfR8dxqTQgKygPNzT5KQkN5b5sT7eZPEkdxyLTXGnNQB3j7KG4DPFg5Qez5yNJBQRQ5r7DDnFfjG"],
			"message": {
				"accountKeys": [
					{"pubkey": "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK", "signer": true, "writable": true}
				]
			}
		}
	}`

	rec, err := DecodeRecord([]byte(payload))
	require.NoError(t, err)

	assert.True(t, rec.Failed)
	require.Len(t, rec.AccountKeys, 1)
	assert.Equal(t, 0, rec.SubjectIndex("DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK"))

	require.Len(t, rec.PreTokenBalances, 1)
	assert.Equal(t, 100.0, rec.PreTokenBalances[0].UiAmount)
	assert.Equal(t, "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", rec.PreTokenBalances[0].Mint)
	require.Len(t, rec.PostTokenBalances, 1)
	assert.Equal(t, 150.0, rec.PostTokenBalances[0].UiAmount)
}

func TestDecodeRecord_NullUiAmount(t *testing.T) {
	payload := `{
		"meta": {
			"err": null,
			"preTokenBalances": [
				{
					"accountIndex": 1,
					"mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v",
					"owner": "DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK",
					"uiTokenAmount": {"amount": "0", "decimals": 6, "uiAmount": null, "uiAmountString": "0"}
				}
			]
		},
		"transaction": {"signatures": [], "message": {"accountKeys": []}}
	}`

	rec, err := DecodeRecord([]byte(payload))
	require.NoError(t, err)
	require.Len(t, rec.PreTokenBalances, 1)
	assert.Equal(t, 0.0, rec.PreTokenBalances[0].UiAmount)
}

func TestDecodeRecord_NoMeta(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"slot": 5, "transaction": {"signatures": ["abc"], "message": {"accountKeys": []}}}`))
	require.NoError(t, err)
	assert.False(t, rec.HasBalanceMeta())
	assert.Equal(t, "abc", rec.Signature)
}
