package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRoundTrip(t *testing.T) {
	raw := uuid.New()

	claimID, err := ParseClaimID(raw.String())
	require.NoError(t, err)
	assert.Equal(t, raw.String(), claimID.String())

	receiptID, err := ParseReceiptID(raw.String())
	require.NoError(t, err)
	assert.Equal(t, raw.String(), receiptID.String())

	contractID, err := ParseContractID(raw.String())
	require.NoError(t, err)
	assert.Equal(t, raw.String(), contractID.String())
}

func TestParseRejectsGarbage(t *testing.T) {
	for _, input := range []string{"", "not-a-uuid", "550e8400-e29b-41d4"} {
		_, err := ParseClaimID(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestIsNil(t *testing.T) {
	assert.True(t, ClaimID(uuid.Nil).IsNil())
	assert.False(t, NewClaimID().IsNil())
}

// The defined types must serialize as uuid strings, not as uuid's raw byte
// array. A claim payload carrying a byte-array id would break every client.
func TestJSONMarshalsAsString(t *testing.T) {
	claimID := NewClaimID()

	data, err := json.Marshal(claimID)
	require.NoError(t, err)
	assert.Equal(t, `"`+claimID.String()+`"`, string(data))

	var decoded ClaimID
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, claimID, decoded)
}

func TestJSONUnmarshalRejectsGarbage(t *testing.T) {
	var decoded ReceiptID
	assert.Error(t, json.Unmarshal([]byte(`"not-a-uuid"`), &decoded))
}
