package wire

import (
	"strings"
	"testing"
)

func TestClassifyResponse(t *testing.T) {
	f, err := Classify([]byte(`{"jsonrpc":"2.0","id":"1","result":{"ok":true}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind != KindResponseFrame {
		t.Fatalf("kind = %v, want response", f.Kind)
	}
	if !f.ID.Equal(NewStringID("1")) {
		t.Fatalf("id = %v, want 1", f.ID)
	}
}

func TestClassifyError(t *testing.T) {
	f, err := Classify([]byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind != KindErrorFrame {
		t.Fatalf("kind = %v, want error", f.Kind)
	}
	if !f.ID.IsNull() {
		t.Fatalf("id should be null")
	}
	if f.Err.Code != CodeParseError {
		t.Fatalf("code = %d, want %d", f.Err.Code, CodeParseError)
	}
}

func TestClassifyInboundRequest(t *testing.T) {
	f, err := Classify([]byte(`{"jsonrpc":"2.0","id":7,"method":"session/request_permission","params":{}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind != KindInboundRequestFrame {
		t.Fatalf("kind = %v, want inbound-request", f.Kind)
	}
	if !f.ID.Equal(NewIntID(7)) {
		t.Fatalf("id = %v, want 7", f.ID)
	}
	if f.Method != "session/request_permission" {
		t.Fatalf("method = %q", f.Method)
	}
}

func TestClassifyNotification(t *testing.T) {
	f, err := Classify([]byte(`{"jsonrpc":"2.0","method":"session/update","params":{}}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Kind != KindNotificationFrame {
		t.Fatalf("kind = %v, want notification", f.Kind)
	}
}

func TestClassifyAmbiguousIsParseError(t *testing.T) {
	_, err := Classify([]byte(`{"jsonrpc":"2.0","foo":"bar"}`))
	if err == nil {
		t.Fatal("expected parse error for ambiguous frame")
	}
	var pe *ParseError
	if !asParseError(err, &pe) {
		t.Fatalf("expected *ParseError, got %T", err)
	}
}

func TestClassifyMalformedJSONIsParseError(t *testing.T) {
	_, err := Classify([]byte(`not json`))
	var pe *ParseError
	if !asParseError(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
	if !strings.Contains(string(pe.Raw), "not json") {
		t.Fatalf("raw payload not preserved: %q", pe.Raw)
	}
}

func asParseError(err error, target **ParseError) bool {
	pe, ok := err.(*ParseError)
	if ok {
		*target = pe
	}
	return ok
}

func TestIDEquality(t *testing.T) {
	if NewStringID("1").Equal(NewIntID(1)) {
		t.Fatal("string id \"1\" must not equal int id 1")
	}
	if !NewIntID(5).Equal(NewIntID(5)) {
		t.Fatal("equal ints should be equal")
	}
	if !NullID().Equal(NullID()) {
		t.Fatal("null should equal null")
	}
}

func TestIDRoundTrip(t *testing.T) {
	for _, id := range []ID{NewStringID("abc"), NewIntID(42), NullID()} {
		b, err := id.MarshalJSON()
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		var got ID
		if err := got.UnmarshalJSON(b); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if !got.Equal(id) {
			t.Fatalf("round trip mismatch: got %v, want %v", got, id)
		}
	}
}

func TestEncodeRequestNoEscapedSlash(t *testing.T) {
	b, err := EncodeRequest(NewStringID("1"), "initialize", map[string]string{"path": "a/b/c"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if strings.Contains(string(b), `\/`) {
		t.Fatalf("forward slash was escaped: %s", b)
	}
	if !strings.HasSuffix(string(b), "\n") {
		t.Fatalf("frame must end with a single newline: %q", b)
	}
}

func TestIdCounterMonotonic(t *testing.T) {
	var c idCounter
	first := c.Next()
	second := c.Next()
	if !first.Equal(NewStringID("1")) {
		t.Fatalf("first id = %v, want 1", first)
	}
	if !second.Equal(NewStringID("2")) {
		t.Fatalf("second id = %v, want 2", second)
	}
	c.Reset()
	if !c.Next().Equal(NewStringID("1")) {
		t.Fatal("reset should restart from 1")
	}
}
