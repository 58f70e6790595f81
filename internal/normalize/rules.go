// Package normalize maps parsed log records onto UnifiedMessages.
package normalize

import (
	"strings"

	"github.com/ecu-analyzer/backend/internal/models"
)

// Route is the outcome of a rule: endpoints, transport and semantic type.
type Route struct {
	Source      models.VM
	Destination models.VM
	Protocol    models.Protocol
	Type        models.MessageType
	// Unclassified marks a fallback result that deserves a warning.
	Unclassified bool
}

// Rule pairs a predicate over a record with the route it yields.
type Rule struct {
	Name  string
	Match func(rec *models.ParsedRecord) bool
	Route func(rec *models.ParsedRecord) Route
}

func component(c models.Component) func(*models.ParsedRecord) bool {
	return func(rec *models.ParsedRecord) bool { return rec.Component == c }
}

func mcuEvent(events ...string) func(*models.ParsedRecord) bool {
	return func(rec *models.ParsedRecord) bool {
		if rec.Component != models.ComponentMCU {
			return false
		}
		for _, e := range events {
			if rec.Event == e {
				return true
			}
		}
		return false
	}
}

func fixed(src, dst models.VM, p models.Protocol, t models.MessageType) func(*models.ParsedRecord) Route {
	return func(*models.ParsedRecord) Route {
		return Route{Source: src, Destination: dst, Protocol: p, Type: t}
	}
}

// translatorType classifies the translator components by event name.
func translatorType(src, dst models.VM) func(*models.ParsedRecord) Route {
	return func(rec *models.ParsedRecord) Route {
		r := Route{Source: src, Destination: dst, Protocol: models.ProtocolUART}
		switch {
		case strings.Contains(rec.Event, "_REQ"):
			r.Type = models.TypeDiagReq
		case strings.Contains(rec.Event, "_RESP"):
			r.Type = models.TypeDiagResp
		case strings.Contains(rec.Event, "OEMPM_EVT_ASSERTION_WAKEUP_LINE"),
			strings.Contains(rec.Event, "OEMPM_EVT_DEASSERTION_WAKEUP_LINE"):
			r.Type = models.TypeHeartbeat
		default:
			r.Type = models.TypeStatusUpdate
			r.Unclassified = true
		}
		return r
	}
}

// DefaultRules is the rule table in evaluation order. The first rule whose
// predicate holds decides the route.
var DefaultRules = []Rule{
	{
		Name:  "mcu_wakeup_line",
		Match: mcuEvent("WAKEUP_LINE_STAT"),
		Route: fixed(models.VM2, models.VM1, models.ProtocolUART, models.TypeStatusUpdate),
	},
	{
		Name:  "mcu_soc_comm_request",
		Match: mcuEvent("START_SOC_COMM_REQ"),
		Route: fixed(models.VM1, models.VM2, models.ProtocolUART, models.TypeDiagReq),
	},
	{
		Name:  "mcu_event_response",
		Match: mcuEvent("PM_EVENT_RESP"),
		Route: fixed(models.VM1, models.VM2, models.ProtocolUART, models.TypeDiagResp),
	},
	{
		Name:  "mcu_alive",
		Match: mcuEvent("ALIVE_MSG"),
		Route: fixed(models.VM1, models.VM2, models.ProtocolUART, models.TypeHeartbeat),
	},
	{
		Name:  "mcu_signals",
		Match: mcuEvent("SIGNAL_CHANGE", "SIGNAL_STATE"),
		Route: fixed(models.VM1, models.VM2, models.ProtocolUART, models.TypeStatusUpdate),
	},
	{
		Name:  "mcu_other",
		Match: component(models.ComponentMCU),
		Route: fixed(models.VM1, models.VM2, models.ProtocolUART, models.TypeDiagReq),
	},
	{
		Name:  "mcu_manager_translator",
		Match: component(models.ComponentMCUMgrTranslator),
		Route: translatorType(models.VM1, models.VM2),
	},
	{
		Name:  "oempm_translator",
		Match: component(models.ComponentOEMPMMsgTranslator),
		Route: translatorType(models.VM2, models.VM1),
	},
	{
		Name:  "someip_processor",
		Match: component(models.ComponentCSomeIpProcessor),
		Route: func(rec *models.ParsedRecord) Route {
			r := Route{Source: models.VM2, Destination: models.VM1, Protocol: models.ProtocolSOMEIP, Type: models.TypeStatusUpdate}
			if rec.Event == "eSleepOrder" {
				r.Type = models.TypeDiagReq
			}
			return r
		},
	},
	{
		Name:  "guest_la",
		Match: component(models.ComponentLA),
		Route: fixed(models.VM2, models.VM3, models.ProtocolUART, models.TypeStatusUpdate),
	},
	{
		Name:  "guest_la1",
		Match: component(models.ComponentLA1),
		Route: fixed(models.VM2, models.VM4, models.ProtocolUART, models.TypeStatusUpdate),
	},
	{
		Name:  "boot_manager",
		Match: component(models.ComponentBootManager),
		Route: fixed(models.VM1, models.VM4, models.ProtocolMODE, models.TypeStatusUpdate),
	},
}

// fallback applies when no rule matches.
var fallback = Route{
	Source:       models.VM1,
	Destination:  models.VM4,
	Protocol:     models.ProtocolUART,
	Type:         models.TypeStatusUpdate,
	Unclassified: true,
}
