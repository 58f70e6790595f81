package normalize

import (
	"testing"
	"time"

	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rec(c models.Component, event string) *models.ParsedRecord {
	return &models.ParsedRecord{
		Timestamp:  time.Date(2025, 1, 1, 12, 0, 0, 5*int(time.Millisecond), time.UTC),
		Component:  c,
		LineNumber: 3,
		Event:      event,
		Message:    "message text",
	}
}

func TestClassify_RuleTable(t *testing.T) {
	n := New(nil)

	tests := []struct {
		name     string
		rec      *models.ParsedRecord
		src, dst models.VM
		protocol models.Protocol
		typ      models.MessageType
	}{
		{"wakeup", rec(models.ComponentMCU, "WAKEUP_LINE_STAT"), models.VM2, models.VM1, models.ProtocolUART, models.TypeStatusUpdate},
		{"soc request", rec(models.ComponentMCU, "START_SOC_COMM_REQ"), models.VM1, models.VM2, models.ProtocolUART, models.TypeDiagReq},
		{"pm response", rec(models.ComponentMCU, "PM_EVENT_RESP"), models.VM1, models.VM2, models.ProtocolUART, models.TypeDiagResp},
		{"alive", rec(models.ComponentMCU, "ALIVE_MSG"), models.VM1, models.VM2, models.ProtocolUART, models.TypeHeartbeat},
		{"signal change", rec(models.ComponentMCU, "SIGNAL_CHANGE"), models.VM1, models.VM2, models.ProtocolUART, models.TypeStatusUpdate},
		{"signal state", rec(models.ComponentMCU, "SIGNAL_STATE"), models.VM1, models.VM2, models.ProtocolUART, models.TypeStatusUpdate},
		{"other mcu", rec(models.ComponentMCU, "SOMETHING"), models.VM1, models.VM2, models.ProtocolUART, models.TypeDiagReq},
		{"mgr request", rec(models.ComponentMCUMgrTranslator, "START_SOC_COMM_REQ"), models.VM1, models.VM2, models.ProtocolUART, models.TypeDiagReq},
		{"mgr response", rec(models.ComponentMCUMgrTranslator, "SOC_STATE_RESP"), models.VM1, models.VM2, models.ProtocolUART, models.TypeDiagResp},
		{"oempm wakeup assert", rec(models.ComponentOEMPMMsgTranslator, "OEMPM_EVT_ASSERTION_WAKEUP_LINE"), models.VM2, models.VM1, models.ProtocolUART, models.TypeHeartbeat},
		{"oempm wakeup deassert", rec(models.ComponentOEMPMMsgTranslator, "OEMPM_EVT_DEASSERTION_WAKEUP_LINE"), models.VM2, models.VM1, models.ProtocolUART, models.TypeHeartbeat},
		{"oempm unknown", rec(models.ComponentOEMPMMsgTranslator, "UNKNOWN"), models.VM2, models.VM1, models.ProtocolUART, models.TypeStatusUpdate},
		{"someip sleep", rec(models.ComponentCSomeIpProcessor, "eSleepOrder"), models.VM2, models.VM1, models.ProtocolSOMEIP, models.TypeDiagReq},
		{"someip power", rec(models.ComponentCSomeIpProcessor, "ePowerMode"), models.VM2, models.VM1, models.ProtocolSOMEIP, models.TypeStatusUpdate},
		{"la", rec(models.ComponentLA, "POWER_STATUS_LA"), models.VM2, models.VM3, models.ProtocolUART, models.TypeStatusUpdate},
		{"la1", rec(models.ComponentLA1, "POWER_STATUS_LA1"), models.VM2, models.VM4, models.ProtocolUART, models.TypeStatusUpdate},
		{"boot", rec(models.ComponentBootManager, "COLD_BOOT"), models.VM1, models.VM4, models.ProtocolMODE, models.TypeStatusUpdate},
		{"fallback", rec(models.Component("Mystery"), "X"), models.VM1, models.VM4, models.ProtocolUART, models.TypeStatusUpdate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := n.Classify(tt.rec)
			assert.Equal(t, tt.src, r.Source)
			assert.Equal(t, tt.dst, r.Destination)
			assert.Equal(t, tt.protocol, r.Protocol)
			assert.Equal(t, tt.typ, r.Type)
			assert.NotEqual(t, r.Source, r.Destination)
		})
	}
}

func TestClassify_FlagsUnclassified(t *testing.T) {
	n := New(nil)

	r, rule := n.Classify(rec(models.Component("Mystery"), "X"))
	assert.True(t, r.Unclassified)
	assert.Empty(t, rule)

	r, rule = n.Classify(rec(models.ComponentMCUMgrTranslator, "UNKNOWN"))
	assert.True(t, r.Unclassified)
	assert.Equal(t, "mcu_manager_translator", rule)

	r, _ = n.Classify(rec(models.ComponentLA, "POWER_STATUS_LA"))
	assert.False(t, r.Unclassified)
}

func TestNormalize_CommonFields(t *testing.T) {
	m := New(nil).Normalize(rec(models.ComponentLA1, "POWER_STATUS_LA1"), 4)

	assert.Equal(t, "2025-01-01T12:00:00.005Z", m.Timestamp)
	assert.Equal(t, "UART:POWER_STATUS_LA1:message text", m.Raw)
	assert.Equal(t, 10004, m.Payload["sequence_id"])
	assert.Equal(t, "POWER_STATUS_LA1", m.Payload["message_type"])
	assert.Equal(t, "message text", m.Payload["function"])
	assert.Equal(t, "LA1", m.Payload["component"])
	assert.Equal(t, 3, m.Payload["line_number"])
	assert.Equal(t, time.Date(2025, 1, 1, 12, 0, 0, 5*int(time.Millisecond), time.UTC).UnixMilli(), m.Payload["timestamp"])
	assert.NotContains(t, m.Payload, "signals")
	assert.NotContains(t, m.Payload, "routing")
}

func TestNormalize_RawTruncatesMessage(t *testing.T) {
	r := rec(models.ComponentBootManager, "QUICK_BOOT")
	r.Message = "0123456789012345678901234567890123456789"
	m := New(nil).Normalize(r, 0)
	assert.Equal(t, "MODE:QUICK_BOOT:012345678901234567890123456789", m.Raw)
}

func TestNormalize_MCUPayload(t *testing.T) {
	n := New(nil)

	sig := rec(models.ComponentMCU, "SIGNAL_CHANGE")
	sig.Signals = map[string]int{"POFF": 1, "WK_L": 0}
	sig.Changes = []string{"POFF(1)"}
	sig.Routing = "1 to 2"
	sig.Duration = "0 ms"
	sig.Priority = "HI"
	seq := 2
	sig.Sequence = &seq

	m := n.Normalize(sig, 0)
	assert.Equal(t, sig.Signals, m.Payload["signals"])
	assert.Equal(t, []string{"POFF(1)"}, m.Payload["changes"])
	assert.Equal(t, 2, m.Payload["signal_count"])
	assert.Equal(t, 2, m.Payload["sequence"])
	assert.Equal(t, "HI", m.Payload["priority"])

	wake := rec(models.ComponentMCU, "WAKEUP_LINE_STAT")
	wake.Routing = "1 to 2"
	wake.Duration = "0 ms"
	wake.Priority = "MD"
	m = n.Normalize(wake, 1)
	assert.Equal(t, "1 to 2", m.Payload["routing"])
	assert.NotContains(t, m.Payload, "signal_count")
	assert.NotContains(t, m.Payload, "signals")

	resp := rec(models.ComponentMCU, "PM_EVENT_RESP")
	resp.Routing = "1 to 2"
	m = n.Normalize(resp, 2)
	assert.NotContains(t, m.Payload, "duration", "absent fields are omitted, never null")
	assert.Equal(t, 0, m.Payload["signal_count"])
}

func TestConvert_SequenceAndDiagnostics(t *testing.T) {
	records := []models.ParsedRecord{
		*rec(models.ComponentLA, "POWER_STATUS_LA"),
		*rec(models.ComponentOEMPMMsgTranslator, "UNKNOWN"),
		*rec(models.ComponentBootManager, "COLD_BOOT"),
	}
	diag := models.NewDiagnostics(5)

	msgs := New(nil).Convert(records, diag)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		id, ok := m.SequenceID()
		require.True(t, ok)
		assert.Equal(t, SequenceBase+i, id)
	}
	assert.Equal(t, 1, diag.Count(models.DiagUnknownEvent))
	assert.Equal(t, 3, diag.Messages)
}

func TestNew_CustomRules(t *testing.T) {
	n := New([]Rule{{
		Name:  "everything_is_can",
		Match: func(*models.ParsedRecord) bool { return true },
		Route: fixed(models.VM5, models.VM6, models.ProtocolCAN, models.TypeCANFrame),
	}})
	m := n.Normalize(rec(models.ComponentLA, "X"), 0)
	assert.Equal(t, models.ProtocolCAN, m.Protocol)
	assert.Equal(t, models.TypeCANFrame, m.Type)
}
