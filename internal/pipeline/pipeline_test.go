package pipeline

import (
	"bytes"
	"testing"

	"github.com/ecu-analyzer/backend/internal/interchange"
	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ProducesMessages(t *testing.T) {
	text := "01-00:00:01.000 PO HI [PM] POFF(1)\n" +
		"Jun 26 15:53:40.000 oem_pm.1 oem_pm 1 oem_pm[CVMMInf.cpp: 88]: /la/ on\n" +
		"noise"

	batch, err := New(Config{}).Run(text)
	require.NoError(t, err)
	require.Len(t, batch.Messages, 2)
	assert.Len(t, batch.Records, 2)

	assert.Equal(t, models.VM1, batch.Messages[0].SourceVM)
	assert.Equal(t, models.VM2, batch.Messages[0].DestinationVM)
	assert.Equal(t, models.VM3, batch.Messages[1].DestinationVM)

	assert.Equal(t, 3, batch.Diagnostics.Lines)
	assert.Equal(t, 2, batch.Diagnostics.Messages)
	assert.Equal(t, 1, batch.Diagnostics.Count(models.DiagUnmatchedLine))
}

func TestRun_NoValidEntries(t *testing.T) {
	batch, err := New(Config{}).Run("nothing useful\nat all")
	assert.ErrorIs(t, err, ErrNoValidLogEntries)
	require.NotNil(t, batch)
	assert.Equal(t, 2, batch.Diagnostics.Count(models.DiagUnmatchedLine))
}

func TestRun_EmptyText(t *testing.T) {
	_, err := New(Config{}).Run("")
	assert.ErrorIs(t, err, ErrNoValidLogEntries)
}

func TestRun_FreshPipelineHasFreshSignalState(t *testing.T) {
	line := "01-00:00:01.000 PO HI [PM] POFF(1)"

	p := New(Config{})
	_, err := p.Run(line)
	require.NoError(t, err)
	second, err := p.Run(line)
	require.NoError(t, err)
	assert.Equal(t, "SIGNAL_STATE", second.Messages[0].Payload["message_type"])

	fresh, err := New(Config{}).Run(line)
	require.NoError(t, err)
	assert.Equal(t, "SIGNAL_CHANGE", fresh.Messages[0].Payload["message_type"])
}

func TestRun_IdenticalInputIdenticalOutput(t *testing.T) {
	text := "01-00:00:01.000 PO HI [PM] POFF(1) ACC(0)\n" +
		"01-00:00:01.200 PO MD [1 to 2] POFF(0) ACC(1) 12 ms\n" +
		"01-00:00:01.300 PO LO [PM] POFF(0) ACC(1)\n" +
		"Jun 26 15:53:40.000 oem_pm.1 oem_pm 1 oem_pm[CVMMInf.cpp: 88]: /la/ on\n" +
		"garbage line"

	encode := func() []byte {
		batch, err := New(Config{}).Run(text)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, interchange.Encode(&buf, batch.Messages))
		return buf.Bytes()
	}

	first, second := encode(), encode()
	assert.NotEmpty(t, first)
	assert.Equal(t, string(first), string(second))
}
