package protocol

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// Commands routed over the stream connection.
const (
	CmdPlayerGet     = "player.get"
	CmdBagGet        = "bag.get"
	CmdBagUseItem    = "bag.useItem"
	CmdDailySignInfo = "dailySign.info"
	CmdDailySignSign = "dailySign.sign"
)

// CodeOK is the application status code for success, both on the login
// response and on stream envelopes.
const CodeOK = 0

// Envelope is the uniform shape of an inbound stream message.
type Envelope struct {
	Command   string
	RequestID string
	Code      int
	Message   string
	// Data is the command specific payload, itself JSON text.
	Data string
}

// OK reports whether the envelope carries a success status.
func (e Envelope) OK() bool { return e.Code == CodeOK }

// NewRequestID returns a fresh 32 character hex id for an outgoing command.
func NewRequestID() string {
	u := uuid.New()
	return strings.ReplaceAll(u.String(), "-", "")
}

// Encode builds the outgoing text frame for command.
func Encode(command, requestID string) ([]byte, error) {
	return encode(outEnvelope{Cmd: command, ReqID: requestID})
}

// EncodeWithData builds an outgoing frame carrying a request body. data is
// JSON encoded and sent as a string, the same shape the server uses for
// inbound payloads.
func EncodeWithData(command, requestID string, data any) ([]byte, error) {
	out := outEnvelope{Cmd: command, ReqID: requestID}
	if data != nil {
		b, err := marshal(data)
		if err != nil {
			return nil, Wrap(CodeInvalidArgument, "encode data for "+command, err)
		}
		out.Data = string(b)
	}
	return encode(out)
}

func encode(out outEnvelope) ([]byte, error) {
	if strings.TrimSpace(out.Cmd) == "" {
		return nil, New(CodeInvalidArgument, "empty command")
	}
	b, err := marshal(out)
	if err != nil {
		return nil, Wrap(CodeInvalidArgument, "encode envelope", err)
	}
	return b, nil
}

// marshal encodes v without HTML escaping and without the trailing newline
// json.Encoder appends.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Decode parses one inbound frame. An envelope without a command decodes to
// ErrEmptyCommand so callers can drop it.
func Decode(raw []byte) (Envelope, error) {
	var in inEnvelope
	if err := json.Unmarshal(raw, &in); err != nil {
		return Envelope{}, Wrap(CodeDecode, "decode envelope", err)
	}
	data, err := payloadText(in.Data)
	if err != nil {
		return Envelope{}, err
	}
	env := Envelope{
		Command:   in.Cmd,
		RequestID: in.ReqID,
		Code:      in.Code,
		Message:   in.Msg,
		Data:      data,
	}
	if env.Command == "" {
		return env, ErrEmptyCommand
	}
	return env, nil
}

// payloadText accepts data as a JSON string (canonical) or as an inline
// JSON value, returning the payload's JSON text either way.
func payloadText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] != '"' {
		return string(raw), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", Wrap(CodeDecode, "decode data", err)
	}
	return s, nil
}
