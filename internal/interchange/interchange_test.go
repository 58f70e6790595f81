package interchange

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRecord = `{"timestamp":"2025-01-01T00:00:00.000Z","source_vm":"VM1","destination_vm":"VM2","protocol":"CAN","type":"CAN_FRAME","raw":"CAN:0x123","payload":{"can_id":"0x123","sequence_id":7}}`

func TestDecode_KeepsValidDropsInvalid(t *testing.T) {
	data := `[` + validRecord + `,
		{"timestamp":"2025-01-01T00:00:00.000Z","source_vm":"VM1","protocol":"CAN","type":"CAN_FRAME","raw":"x","payload":{}},
		{"timestamp":"","source_vm":"VM1","destination_vm":"VM2","protocol":"CAN","type":"CAN_FRAME","raw":"x","payload":{}},
		{"timestamp":"2025-01-01T00:00:00.000Z","source_vm":"VM1","destination_vm":"VM2","protocol":"CAN","type":"CAN_FRAME","raw":"x","payload":null},
		42
	]`

	res, err := Decode([]byte(data))
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, 4, res.Dropped)

	m := res.Messages[0]
	assert.Equal(t, models.VM2, m.DestinationVM)
	assert.Equal(t, models.ProtocolCAN, m.Protocol)
	assert.Equal(t, "0x123", m.Payload["can_id"])
	id, ok := m.SequenceID()
	assert.True(t, ok)
	assert.Equal(t, 7, id)
}

func TestDecode_EmptyPayloadObjectIsValid(t *testing.T) {
	rec := strings.Replace(validRecord, `{"can_id":"0x123","sequence_id":7}`, `{}`, 1)
	res, err := Decode([]byte("[" + rec + "]"))
	require.NoError(t, err)
	assert.Len(t, res.Messages, 1)
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte(`{"timestamp":"x"}`))
	assert.ErrorIs(t, err, ErrNotArray)

	_, err = Decode([]byte(``))
	assert.ErrorIs(t, err, ErrNotArray)

	_, err = Decode([]byte(`[]`))
	assert.ErrorIs(t, err, ErrNoValidMessages)

	_, err = Decode([]byte(`[{"raw":"only"}]`))
	assert.ErrorIs(t, err, ErrNoValidMessages)

	_, err = Decode([]byte(`[{"broken"`))
	assert.Error(t, err)
}

func TestEncodeLoadRoundTrip(t *testing.T) {
	in := []models.UnifiedMessage{{
		Timestamp:     "2025-01-01T12:00:00.000Z",
		SourceVM:      models.VM2,
		DestinationVM: models.VM1,
		Protocol:      models.ProtocolSOMEIP,
		Type:          models.TypeDiagReq,
		Raw:           "SOMEIP:eSleepOrder:x",
		Payload:       models.Payload{"component": "CSomeIpProcessor"},
	}}

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, in))

	res, err := Load(&buf)
	require.NoError(t, err)
	require.Len(t, res.Messages, 1)
	assert.Equal(t, "CSomeIpProcessor", res.Messages[0].Component())
	assert.Equal(t, in[0].Raw, res.Messages[0].Raw)
}

func TestEncode_NilWritesEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, nil))
	assert.Equal(t, "[]", strings.TrimSpace(buf.String()))
}
