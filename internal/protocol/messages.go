package protocol

import "encoding/json"

// outEnvelope is the client -> server text frame.
type outEnvelope struct {
	Cmd   string `json:"cmd"`
	ReqID string `json:"reqId"`
	Data  string `json:"data,omitempty"`
}

// inEnvelope is the server -> client text frame.
type inEnvelope struct {
	Cmd   string          `json:"cmd"`
	ReqID string          `json:"reqId"`
	Code  int             `json:"code"`
	Msg   string          `json:"msg"`
	Data  json.RawMessage `json:"data"`
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// APIResponse is the standard HTTP response envelope: { "code": 0, "msg": "ok", "data": ... }.
type APIResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func (r APIResponse) OK() bool { return r.Code == CodeOK }

// DataText returns the response data as text. A JSON string is unquoted,
// any other value is returned as its JSON encoding.
func (r APIResponse) DataText() (string, error) {
	return payloadText(r.Data)
}

// OutFrame is the decoded form of a client frame, used by servers and tools
// that read what the client sent.
type OutFrame struct {
	Cmd   string `json:"cmd"`
	ReqID string `json:"reqId"`
	Data  string `json:"data,omitempty"`
}

// DecodeOut parses a client -> server frame.
func DecodeOut(raw []byte) (OutFrame, error) {
	var f OutFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return OutFrame{}, Wrap(CodeDecode, "decode client frame", err)
	}
	if f.Cmd == "" {
		return f, ErrEmptyCommand
	}
	return f, nil
}

// Reply is a server -> client envelope as written by servers and tests.
type Reply struct {
	Cmd   string `json:"cmd"`
	ReqID string `json:"reqId"`
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	Data  string `json:"data"`
}

// EncodeReply marshals a server envelope, JSON encoding data into the data
// string when it is not nil.
func EncodeReply(cmd, reqID string, code int, msg string, data any) ([]byte, error) {
	r := Reply{Cmd: cmd, ReqID: reqID, Code: code, Msg: msg}
	if data != nil {
		b, err := marshal(data)
		if err != nil {
			return nil, err
		}
		r.Data = string(b)
	}
	return marshal(r)
}
