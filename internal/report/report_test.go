package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/zboralski/vtabledump/internal/rtti"
	"github.com/zboralski/vtabledump/internal/vtable"
)

func sampleResult() *vtable.Result {
	return &vtable.Result{
		Records: []*vtable.Record{
			{
				Addr:        0x1000,
				Name:        "_ZTV4Leaf",
				PointerSize: 8,
				Typeinfo:    &rtti.Typeinfo{Kind: rtti.Class, Name: "4Leaf"},
				Vftables:    []vtable.Vftable{{{Name: "ZN4Leaf3fooEv"}}},
			},
		},
	}
}

func TestWriteTextNoColor(t *testing.T) {
	SetNoColor(true)
	defer SetNoColor(false)

	var buf bytes.Buffer
	if err := WriteText(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteText: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"_ZTV4Leaf",
		"type: CLASS_TYPE_INFO",
		"name: _Z4Leaf",
		"number of vftables: 1",
		"----- VFTABLE",
		"ZN4Leaf3fooEv is at offset 0x0 (member# 0)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteJSONShape(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, sampleResult()); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var records []jsonRecord
	if err := json.Unmarshal(buf.Bytes(), &records); err != nil {
		t.Fatalf("json.Unmarshal: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("got %d records, want 1", len(records))
	}
	if records[0].Typeinfo.Type != "CLASS_TYPE_INFO" {
		t.Errorf("Typeinfo.Type = %q", records[0].Typeinfo.Type)
	}
	if len(records[0].Vftables) != 1 || records[0].Vftables[0][0] != "ZN4Leaf3fooEv" {
		t.Errorf("Vftables = %+v", records[0].Vftables)
	}
}
