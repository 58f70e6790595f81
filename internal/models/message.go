package models

import (
	"fmt"
	"time"
)

// TimestampLayout renders instants as ISO-8601 UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// VM is a logical endpoint of the platform.
type VM string

const (
	VM1 VM = "VM1" // MCU / host side
	VM2 VM = "VM2" // hypervisor-hosted RTOS partition
	VM3 VM = "VM3" // guest "la"
	VM4 VM = "VM4" // guest "la1"
	VM5 VM = "VM5"
	VM6 VM = "VM6"
)

// Protocol is the transport a message travelled over.
type Protocol string

const (
	ProtocolUART   Protocol = "UART"
	ProtocolSOMEIP Protocol = "SOMEIP"
	ProtocolMODE   Protocol = "MODE"
	ProtocolCAN    Protocol = "CAN"
)

// Valid reports whether p is one of the known protocols.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolUART, ProtocolSOMEIP, ProtocolMODE, ProtocolCAN:
		return true
	}
	return false
}

// MessageType is the semantic class of a message.
type MessageType string

const (
	TypeDiagReq              MessageType = "DIAG_REQ"
	TypeDiagResp             MessageType = "DIAG_RESP"
	TypeCANFrame             MessageType = "CAN_FRAME"
	TypeStatusUpdate         MessageType = "STATUS_UPDATE"
	TypeErrorCode            MessageType = "ERROR_CODE"
	TypeHeartbeat            MessageType = "HEARTBEAT"
	TypeConfigSet            MessageType = "CONFIG_SET"
	TypeDataStream           MessageType = "DATA_STREAM"
	TypeAck                  MessageType = "ACK"
	TypeNack                 MessageType = "NACK"
	TypeCommunicationFailure MessageType = "COMMUNICATION_FAILURE"
)

// MessageTypes lists every message type in display order.
var MessageTypes = []MessageType{
	TypeDiagReq, TypeDiagResp, TypeCANFrame, TypeStatusUpdate, TypeErrorCode,
	TypeHeartbeat, TypeConfigSet, TypeDataStream, TypeAck, TypeNack, TypeCommunicationFailure,
}

// Valid reports whether t is one of the known message types.
func (t MessageType) Valid() bool {
	for _, known := range MessageTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Payload is the open attribute map carried by a UnifiedMessage.
type Payload map[string]any

// UnifiedMessage is the normalized event consumed by every downstream view.
type UnifiedMessage struct {
	Timestamp     string      `json:"timestamp" msgpack:"timestamp"`
	SourceVM      VM          `json:"source_vm" msgpack:"source_vm"`
	DestinationVM VM          `json:"destination_vm" msgpack:"destination_vm"`
	Protocol      Protocol    `json:"protocol" msgpack:"protocol"`
	Type          MessageType `json:"type" msgpack:"type"`
	Raw           string      `json:"raw" msgpack:"raw"`
	Payload       Payload     `json:"payload" msgpack:"payload"`
}

// FormatTimestamp renders t in the message timestamp layout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Time parses the message timestamp. Zero time is returned when it is malformed.
func (m *UnifiedMessage) Time() time.Time {
	t, err := time.Parse(time.RFC3339Nano, m.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// SequenceID returns payload.sequence_id, accepting decoded JSON numbers.
func (m *UnifiedMessage) SequenceID() (int, bool) {
	return payloadInt(m.Payload, "sequence_id")
}

// Component returns payload.component when present.
func (m *UnifiedMessage) Component() string {
	s, _ := m.Payload["component"].(string)
	return s
}

// BuildRaw composes the short "protocol:event:message" summary.
func BuildRaw(p Protocol, event, message string) string {
	r := []rune(message)
	if len(r) > 30 {
		r = r[:30]
	}
	return fmt.Sprintf("%s:%s:%s", p, event, string(r))
}

func payloadInt(p Payload, key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case uint64:
		return int(v), true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	}
	return 0, false
}
