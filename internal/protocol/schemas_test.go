package protocol_test

import (
	"errors"
	"testing"

	"ddt.game/internal/protocol"
)

func TestSchemas_ValidateSamples(t *testing.T) {
	compile := func(name string) *protocol.Validator {
		t.Helper()
		v, err := protocol.NewSchemaValidator(name)
		if err != nil {
			t.Fatalf("compile %s: %v", name, err)
		}
		return v
	}

	envelope := compile(protocol.SchemaEnvelope)
	command := compile(protocol.SchemaCommand)
	login := compile(protocol.SchemaLoginResponse)

	good := []struct {
		v   *protocol.Validator
		raw string
	}{
		{envelope, `{"cmd":"player.get","reqId":"x","code":0,"msg":"","data":"{\"id\":1}"}`},
		{envelope, `{"cmd":"bag.get","code":0,"data":{"items":[]}}`},
		{envelope, `{"cmd":"dailySign.sign","code":1,"msg":"not signed","data":null}`},
		{login, `{"code":0,"msg":"ok","data":"TOKEN123"}`},
	}
	for _, g := range good {
		if err := g.v.Validate([]byte(g.raw)); err != nil {
			t.Fatalf("validate %s: %v", g.raw, err)
		}
	}

	b, err := protocol.Encode(protocol.CmdPlayerGet, protocol.NewRequestID())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := command.Validate(b); err != nil {
		t.Fatalf("encoded command should match schema: %v", err)
	}

	bad := []struct {
		v   *protocol.Validator
		raw string
	}{
		{envelope, `{"cmd":"","code":0}`},
		{envelope, `{"code":0}`},
		{envelope, `{"cmd":"x","code":"zero"}`},
		{envelope, `{"cmd":`},
		{command, `{"cmd":"player.get","reqId":"NOT-HEX"}`},
		{login, `{"msg":"ok"}`},
	}
	for _, c := range bad {
		err := c.v.Validate([]byte(c.raw))
		if err == nil {
			t.Fatalf("expected %s to be rejected", c.raw)
		}
		if !errors.Is(err, protocol.ErrDecode) {
			t.Fatalf("expected decode error, got %v", err)
		}
	}

	def, err := protocol.NewValidator()
	if err != nil {
		t.Fatalf("default validator: %v", err)
	}
	if err := def.Validate([]byte(`{"cmd":"player.get"}`)); err != nil {
		t.Fatalf("default validator: %v", err)
	}
}
