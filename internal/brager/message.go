package brager

import (
	"encoding/json"
	"fmt"
)

// MessageType identifies the purpose of a wrkfnc frame.
type MessageType int

// Message types used by the BragerConnect wire protocol.
const (
	// ProcedureExec requests execution of a server procedure (no result).
	ProcedureExec MessageType = 1

	// FunctionExec requests execution of a server function.
	FunctionExec MessageType = 2

	// ReadySignal is sent by the server after connect and must be
	// echoed back before the session is usable.
	ReadySignal MessageType = 10

	// FunctionResp carries the result of a FunctionExec call.
	FunctionResp MessageType = 12

	// Exception signals that a call failed on the server side.
	Exception MessageType = 20

	// PortMessage is an unsolicited server push (pool data updates).
	PortMessage MessageType = 21
)

// String returns a human-readable name for the message type.
func (t MessageType) String() string {
	switch t {
	case ProcedureExec:
		return "PROCEDURE_EXEC"
	case FunctionExec:
		return "FUNCTION_EXEC"
	case ReadySignal:
		return "READY_SIGNAL"
	case FunctionResp:
		return "FUNCTION_RESP"
	case Exception:
		return "EXCEPTION"
	case PortMessage:
		return "PORT_MESSAGE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(t))
	}
}

// Frame is a single wrkfnc protocol message.
//
// Every frame carries "wrkfnc": true. Calls include a monotonically
// increasing Nr which the server echoes in the matching response;
// unsolicited server pushes carry no Nr.
type Frame struct {
	WrkFnc bool        `json:"wrkfnc"`
	Type   MessageType `json:"type"`
	Name   string      `json:"name,omitempty"`
	Nr     *int64      `json:"nr,omitempty"`
	Args   []any       `json:"args"`
	Resp   any         `json:"resp,omitempty"`
}

// NewCallFrame builds a request frame for a server function or procedure.
func NewCallFrame(msgType MessageType, name string, nr int64, args []any) Frame {
	if args == nil {
		args = []any{}
	}
	return Frame{
		WrkFnc: true,
		Type:   msgType,
		Name:   name,
		Nr:     &nr,
		Args:   args,
	}
}

// IsResponse reports whether the frame answers a call we sent.
func (f *Frame) IsResponse() bool {
	return f.Nr != nil
}

// DecodeFrame parses a raw WebSocket message into a Frame.
func DecodeFrame(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	if !f.WrkFnc {
		return Frame{}, fmt.Errorf("%w: missing wrkfnc marker", ErrInvalidFrame)
	}
	return f, nil
}

// Encode serialises the frame for sending.
func (f Frame) Encode() ([]byte, error) {
	data, err := json.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFrame, err)
	}
	return data, nil
}
