// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
)

func TestApplicationExceptionText(t *testing.T) {
	tests := []struct {
		ae   *ApplicationException
		want string
	}{
		{&ApplicationException{Type: UnknownMethod}, "Unknown method"},
		{&ApplicationException{Type: ProtocolError}, "Protocol error"},
		{&ApplicationException{Type: UnknownApplicationException}, "Default (unknown) TApplicationException"},
		{&ApplicationException{Type: InternalError, Message: "boom"}, "boom"},
		{&ApplicationException{Type: 42}, "AppExceptionType(42)"},
	}
	for _, tt := range tests {
		if got := tt.ae.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}

func TestApplicationExceptionIs(t *testing.T) {
	err := fmt.Errorf("call: %w", NewApplicationException(MissingResult, "get failed"))
	if !errors.Is(err, ErrApplication) {
		t.Errorf("ErrApplication should match")
	}
	if !errors.Is(err, &ApplicationException{Type: MissingResult}) {
		t.Errorf("same type should match")
	}
	if errors.Is(err, &ApplicationException{Type: UnknownMethod}) {
		t.Errorf("different type matched")
	}
}

func TestApplicationExceptionWire(t *testing.T) {
	buf := transport.NewMemoryBuffer()
	p := protocol.NewBinary(buf, nil)
	if err := writeApplicationException(p, "get", 9, NewApplicationException(WrongMethodName, "wrong %s", "name")); err != nil {
		t.Fatal(err)
	}
	// header, then field 1 (string), field 2 (i32), stop
	want := "80010003" + "00000003" + "676574" + "00000009" +
		"0b0001" + "0000000a" + "77726f6e67206e616d65" +
		"080002" + "00000003" +
		"00"
	if got := fmt.Sprintf("%x", buf.Bytes()); got != want {
		t.Errorf("bytes = %s\nwant    %s", got, want)
	}

	name, typ, seqid, err := p.ReadMessageBegin()
	if err != nil || name != "get" || typ != protocol.EXCEPTION || seqid != 9 {
		t.Fatalf("header = %q %v %d %v", name, typ, seqid, err)
	}
	ae, err := ReadApplicationException(p)
	if err != nil {
		t.Fatal(err)
	}
	if *ae != (ApplicationException{Type: WrongMethodName, Message: "wrong name"}) {
		t.Errorf("decoded %+v", ae)
	}
}
