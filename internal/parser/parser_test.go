package parser

import (
	"strings"
	"testing"
	"time"

	"github.com/ecu-analyzer/backend/internal/models"
	"github.com/ecu-analyzer/backend/internal/signal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLog = `Jun 26 15:53:38.000 System quick boot detected
01-12:34:56.789 PO HI [PM] SIP_PS_HOLD(1) WK_L(1) 5 ms
01-12:34:57.000 PO MD pmCpuIf_EventNotifyWakeupLineStat: 01 02 0A
01-12:34:58.000 PO LO HVPM_ProcControlCmd: START_SOC 3 ms
01-12:34:59.000 PO HI Response of PM EventCmd: 0A 0B
Jun 26 15:53:39.204 oem_pm.1 oem_pm 123 oem_pm[MCUMgrTranslator.cpp: 210]: Sending [START_SOC_COMM_REQ] to MCU
Jun 26 15:53:40.000 oem_pm.1 oem_pm 123 oem_pm[CVMMInf.cpp: 88]: power state /la1/ ON
Jun 26 15:53:41.000 oem_pm.1 oem_pm 123 oem_pm[CSomeIpProcessor.cpp: 55]: CSomeIpProcessor eSleepOrder : 1
garbage line that matches nothing`

func parse(t *testing.T, text string) *Result {
	t.Helper()
	return New(Options{SessionYear: 2025}).Parse(text)
}

func TestParse_ClassifiesEveryFamily(t *testing.T) {
	res := parse(t, sampleLog)
	require.Len(t, res.Records, 8)

	events := make([]string, len(res.Records))
	for i, r := range res.Records {
		events[i] = r.Event
	}
	assert.Equal(t, []string{
		EventQuickBoot, EventSignalChange, EventWakeupLineStat, EventStartSoCCommReq,
		EventPMEventResp, "START_SOC_COMM_REQ", EventPowerStatusLA1, "eSleepOrder",
	}, events)

	assert.Equal(t, 1, res.Diagnostics.Count(models.DiagUnmatchedLine))
	assert.Equal(t, []string{"Line 9: garbage line that matches nothing..."}, res.Diagnostics.Samples(models.DiagUnmatchedLine))
	assert.Equal(t, 9, res.Diagnostics.Lines)
}

func TestParse_MCUFields(t *testing.T) {
	res := parse(t, sampleLog)

	sig := res.Records[1]
	assert.Equal(t, models.ComponentMCU, sig.Component)
	assert.Equal(t, 2, sig.LineNumber)
	assert.Equal(t, "SIP_PS_HOLD(1) WK_L(1)", sig.Message)
	assert.Equal(t, "5 ms", sig.Duration)
	assert.Equal(t, "HI", sig.Priority)
	assert.Equal(t, signal.DefaultRoute, sig.Routing)
	assert.Len(t, sig.Signals, len(signal.Names))
	assert.Equal(t, []string{"SIP_PS_HOLD(1)", "WK_L(1)"}, sig.Changes)
	require.NotNil(t, sig.Sequence)
	assert.Equal(t, 1, *sig.Sequence)
	assert.Equal(t, time.Date(2025, 1, 1, 12, 34, 56, 789*int(time.Millisecond), time.UTC), sig.Timestamp)

	wake := res.Records[2]
	assert.Equal(t, "pmCpuIf_EventNotifyWakeupLineStat: 01 02 0A", wake.Message)
	assert.Equal(t, "0 ms", wake.Duration)

	hvpm := res.Records[3]
	assert.Equal(t, "HVPM_ProcControlCmd: START_SOC", hvpm.Message)
	assert.Equal(t, "3 ms", hvpm.Duration)

	resp := res.Records[4]
	assert.Equal(t, "Response of PM EventCmd: 0A 0B", resp.Message)
	assert.Empty(t, resp.Duration)
}

func TestParse_StructuredFields(t *testing.T) {
	res := parse(t, sampleLog)

	tr := res.Records[5]
	assert.Equal(t, models.ComponentMCUMgrTranslator, tr.Component)
	assert.Equal(t, "MCUMgrTranslator.cpp", tr.SourceFile)
	assert.Equal(t, 210, tr.SourceLine)
	assert.Equal(t, 6, tr.LineNumber)
	assert.Equal(t, "Sending [START_SOC_COMM_REQ] to MCU", tr.Message)

	assert.Equal(t, models.ComponentLA1, res.Records[6].Component)
	assert.Equal(t, models.ComponentCSomeIpProcessor, res.Records[7].Component)
}

func TestParse_SignalStateWhenNothingChanges(t *testing.T) {
	text := "01-00:00:01.000 PO HI [PM] POFF(1)\n01-00:00:02.000 PO HI [1 to 2] POFF(1)\n01-00:00:03.000 PO HI [2  to 1] POFF(1)"
	res := parse(t, text)
	require.Len(t, res.Records, 3)

	assert.Equal(t, EventSignalChange, res.Records[0].Event)
	assert.Equal(t, EventSignalState, res.Records[1].Event, "[PM] and [1 to 2] share the default route")
	assert.Empty(t, res.Records[1].Changes)
	assert.Equal(t, "2 to 1", res.Records[2].Routing)
	assert.Equal(t, EventSignalChange, res.Records[2].Event, "new route starts from its own baseline")
}

func TestParse_OutOfRangeSignalExcluded(t *testing.T) {
	res := parse(t, "01-00:00:01.000 PO HI [PM] POFF(1) comm(1000) BOGUS(3)")
	require.Len(t, res.Records, 1)

	rec := res.Records[0]
	assert.Equal(t, 0, rec.Signals["comm"])
	assert.Equal(t, []string{"POFF(1)"}, rec.Changes)
	assert.Equal(t, 1, res.Diagnostics.Count(models.DiagOutOfRangeSignal))
}

func TestParse_BinaryModeRejectsWideValues(t *testing.T) {
	p := New(Options{SignalMode: signal.ModeGlobalBinary})
	res := p.Parse("01-00:00:01.000 PO HI [PM] POFF(2) WK_L(1)")
	require.Len(t, res.Records, 1)
	assert.Equal(t, []string{"WK_L(1)"}, res.Records[0].Changes)
	assert.Equal(t, 1, res.Diagnostics.Count(models.DiagOutOfRangeSignal))
}

func TestParse_InvalidTimestampDropsLine(t *testing.T) {
	text := "Foo 26 15:53:39.204 oem_pm.1 oem_pm 1 oem_pm[CVMMInf.cpp: 1]: /la/ up\n01-25:00:00.000 PO HI [PM] POFF(1)"
	res := parse(t, text)

	assert.Empty(t, res.Records)
	assert.Equal(t, 2, res.Diagnostics.Count(models.DiagInvalidTimestamp))
	assert.Equal(t, 0, res.Diagnostics.Count(models.DiagUnmatchedLine))
}

func TestParse_BootWithoutTimestampUsesFallback(t *testing.T) {
	t.Run("epoch when nothing seen yet", func(t *testing.T) {
		res := parse(t, "cold boot requested")
		require.Len(t, res.Records, 1)
		assert.Equal(t, EventColdBoot, res.Records[0].Event)
		assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), res.Records[0].Timestamp)
	})

	t.Run("last valid timestamp", func(t *testing.T) {
		res := parse(t, "01-08:00:00.250 PO HI Response of PM EventCmd: 01\nQuickBoot entered")
		require.Len(t, res.Records, 2)
		assert.Equal(t, EventQuickBoot, res.Records[1].Event)
		assert.Equal(t, res.Records[0].Timestamp, res.Records[1].Timestamp)
	})
}

func TestParse_SkipsGuestRegistration(t *testing.T) {
	res := parse(t, "Jun 26 15:53:40.000 oem_pm.1 oem_pm 123 oem_pm[CVMMInf.cpp: 12]: vmid for guest name la1 is 3")
	assert.Empty(t, res.Records)
	assert.Equal(t, 1, res.Diagnostics.Count(models.DiagSkippedLine))
	assert.Equal(t, 0, res.Diagnostics.Count(models.DiagUnmatchedLine))
}

func TestParse_UnknownComponent(t *testing.T) {
	text := "Jun 26 15:53:40.000 oem_pm.1 oem_pm 123 oem_pm[Other.cpp: 12]: hello\n" +
		"Jun 26 15:53:41.000 oem_pm.1 oem_pm 123 oem_pm[CVMMInf.cpp: 12]: no guest path"
	res := parse(t, text)
	assert.Empty(t, res.Records)
	assert.Equal(t, 2, res.Diagnostics.Count(models.DiagUnknownComponent))
}

func TestParse_TranslatorWithoutBracketToken(t *testing.T) {
	res := parse(t, "Jun 26 15:53:40.000 oem_pm.1 oem_pm 9 oem_pm[OEMPMMsgTranslator.cpp: 7]: plain text")
	require.Len(t, res.Records, 1)
	assert.Equal(t, EventUnknown, res.Records[0].Event)
}

func TestParse_CleansControlBytesAndBlankLines(t *testing.T) {
	text := "\x00\x1b01-00:00:01.000 PO HI Response of PM EventCmd: 0A\r\n\n   \n\xffcold boot"
	res := parse(t, text)
	require.Len(t, res.Records, 2)
	assert.Equal(t, 1, res.Records[0].LineNumber)
	assert.Equal(t, 4, res.Records[1].LineNumber)
	assert.Equal(t, 2, res.Diagnostics.Lines)
}

func TestParse_DiagnosticSampleIsBoundedButCountExact(t *testing.T) {
	lines := make([]string, 12)
	for i := range lines {
		lines[i] = "noise"
	}
	res := New(Options{SampleSize: 5}).Parse(strings.Join(lines, "\n"))
	assert.Equal(t, 12, res.Diagnostics.Count(models.DiagUnmatchedLine))
	assert.Len(t, res.Diagnostics.Samples(models.DiagUnmatchedLine), 5)
}

func TestParse_StatePersistsAcrossCallsOnOneParser(t *testing.T) {
	p := New(Options{})
	p.Parse("01-00:00:01.000 PO HI [PM] POFF(1)")
	res := p.Parse("01-00:00:02.000 PO HI [PM] POFF(1)")
	require.Len(t, res.Records, 1)
	assert.Equal(t, EventSignalState, res.Records[0].Event)

	fresh := New(Options{}).Parse("01-00:00:02.000 PO HI [PM] POFF(1)")
	assert.Equal(t, EventSignalChange, fresh.Records[0].Event)
}

func TestParse_Progress(t *testing.T) {
	var calls int
	New(Options{}).ParseWithProgress("cold boot\nquick boot", func(lines, total int) {
		calls++
		assert.Equal(t, 2, lines)
		assert.Equal(t, 2, total)
	})
	assert.Equal(t, 1, calls)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(signal.ModePerRoute)
	assert.Equal(t, []string{"boot_timestamp", "boot", "structured", "mcu"}, r.Names())

	c, err := r.GetClassifierByName("MCU")
	require.NoError(t, err)
	assert.Equal(t, "mcu", c.Name())

	_, err = r.GetClassifierByName("nope")
	assert.Error(t, err)
}
