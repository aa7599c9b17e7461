package protocol

import (
	"encoding/json"
	"errors"
	"regexp"
	"testing"
)

var hexID = regexp.MustCompile(`^[0-9a-f]{32}$`)

func TestNewRequestIDIsFreshHex(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewRequestID()
		if !hexID.MatchString(id) {
			t.Fatalf("unexpected request id %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = true
	}
}

func TestEncodeCommand(t *testing.T) {
	b, err := Encode(CmdPlayerGet, "abc123")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got, want := string(b), `{"cmd":"player.get","reqId":"abc123"}`; got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestEncodeEscapesStrings(t *testing.T) {
	cmd := `we"ird\cmd<tag>`
	b, err := Encode(cmd, `id"1`)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var back OutFrame
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("frame is not valid json: %s: %v", b, err)
	}
	if back.Cmd != cmd || back.ReqID != `id"1` {
		t.Fatalf("round trip mismatch: %+v", back)
	}
	if got, want := string(b), `{"cmd":"we\"ird\\cmd<tag>","reqId":"id\"1"}`; got != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestEncodeRejectsEmptyCommand(t *testing.T) {
	if _, err := Encode("", "x"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if _, err := Encode("   ", "x"); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected invalid argument for blank command, got %v", err)
	}
}

func TestEncodeWithData(t *testing.T) {
	b, err := EncodeWithData(CmdBagUseItem, "r1", map[string]any{"itemId": 7, "count": 2})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	f, err := DecodeOut(b)
	if err != nil {
		t.Fatalf("decode out: %v", err)
	}
	if f.Cmd != CmdBagUseItem || f.ReqID != "r1" {
		t.Fatalf("unexpected frame %+v", f)
	}
	if f.Data != `{"count":2,"itemId":7}` {
		t.Fatalf("unexpected data %q", f.Data)
	}

	plain, _ := Encode(CmdBagGet, "r2")
	noData, err := EncodeWithData(CmdBagGet, "r2", nil)
	if err != nil {
		t.Fatalf("encode nil data: %v", err)
	}
	if string(plain) != string(noData) {
		t.Fatalf("nil data should encode like Encode: %s vs %s", noData, plain)
	}
}

func TestDecodeInbound(t *testing.T) {
	raw := []byte(`{"cmd":"player.get","reqId":"x","code":0,"msg":"","data":"{\"id\":1,\"level\":5}"}`)
	env, err := Decode(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.Command != CmdPlayerGet || env.RequestID != "x" || env.Code != 0 || !env.OK() {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.Data != `{"id":1,"level":5}` {
		t.Fatalf("unexpected data %q", env.Data)
	}
}

func TestDecodeInlineAndNullData(t *testing.T) {
	env, err := Decode([]byte(`{"cmd":"bag.get","code":0,"data":{"items":[]}}`))
	if err != nil {
		t.Fatalf("decode inline: %v", err)
	}
	if env.Data != `{"items":[]}` {
		t.Fatalf("inline data = %q", env.Data)
	}

	env, err = Decode([]byte(`{"cmd":"bag.get","code":3,"msg":"nope","data":null}`))
	if err != nil {
		t.Fatalf("decode null: %v", err)
	}
	if env.Data != "" || env.Code != 3 || env.Message != "nope" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestDecodeErrors(t *testing.T) {
	if _, err := Decode([]byte(`not json`)); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
	if _, err := Decode([]byte(`{"cmd":"x","data":"\q"}`)); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected decode error for bad data string, got %v", err)
	}
	_, err := Decode([]byte(`{"cmd":"","code":0}`))
	if err != ErrEmptyCommand {
		t.Fatalf("expected ErrEmptyCommand, got %v", err)
	}
}

func TestEncodeReply(t *testing.T) {
	b, err := EncodeReply(CmdDailySignSign, "r9", 1, "not signed", nil)
	if err != nil {
		t.Fatalf("encode reply: %v", err)
	}
	env, err := Decode(b)
	if err != nil {
		t.Fatalf("decode reply: %v", err)
	}
	if env.Command != CmdDailySignSign || env.RequestID != "r9" || env.Code != 1 || env.Message != "not signed" || env.Data != "" {
		t.Fatalf("unexpected envelope %+v", env)
	}
}

func TestAPIResponseDataText(t *testing.T) {
	var r APIResponse
	if err := json.Unmarshal([]byte(`{"code":0,"msg":"ok","data":"TOKEN123"}`), &r); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	s, err := r.DataText()
	if err != nil || s != "TOKEN123" || !r.OK() {
		t.Fatalf("DataText=%q err=%v ok=%v", s, err, r.OK())
	}
}
