package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/zboralski/vtabledump/internal/log"
	"github.com/zboralski/vtabledump/internal/rtti"
	"github.com/zboralski/vtabledump/internal/vtable"
)

// jsonTypeinfo mirrors spec.md §6's JSON typeinfo shape: the variant tag
// as "type", plus variant-specific fields.
type jsonTypeinfo struct {
	Type        string          `json:"type"`
	Name        string          `json:"name"`
	BaseClass   *jsonTypeinfo   `json:"base_class,omitempty"`
	Flags       *uint32         `json:"flags,omitempty"`
	BaseCount   *uint32         `json:"base_count,omitempty"`
	BaseClasses []*jsonVMIBase  `json:"base_classes,omitempty"`
}

type jsonVMIBase struct {
	Base   *jsonTypeinfo `json:"base"`
	Flags  uint8         `json:"flags"`
	Offset int64         `json:"offset"`
}

type jsonRecord struct {
	Address     string         `json:"address"`
	PointerSize int            `json:"pointer_size"`
	Typeinfo    *jsonTypeinfo  `json:"typeinfo"`
	Vftables    [][]string     `json:"vftables"`
}

// Envelope is the --json-envelope wrapper. It never changes the shape of
// Vtables, which is exactly the spec.md §6 JSON array — the envelope is
// additive metadata for correlating a report with the run's logs.
type Envelope struct {
	RunID       string       `json:"run_id"`
	Binary      string       `json:"binary"`
	GeneratedAt time.Time    `json:"generated_at"`
	Vtables     []jsonRecord `json:"vtables"`
}

func toJSONTypeinfo(ti *rtti.Typeinfo) *jsonTypeinfo {
	if ti == nil {
		return nil
	}
	out := &jsonTypeinfo{Type: ti.Kind.String(), Name: ti.Name}
	switch ti.Kind {
	case rtti.SI:
		out.BaseClass = toJSONTypeinfo(ti.Base)
	case rtti.VMI:
		flags := ti.Flags
		count := ti.BaseCount
		out.Flags = &flags
		out.BaseCount = &count
		for _, b := range ti.Bases {
			out.BaseClasses = append(out.BaseClasses, &jsonVMIBase{
				Base:   toJSONTypeinfo(b.Base),
				Flags:  b.Flags,
				Offset: b.Offset,
			})
		}
	}
	return out
}

func toJSONRecord(rec *vtable.Record) jsonRecord {
	vftables := make([][]string, len(rec.Vftables))
	for i, vft := range rec.Vftables {
		names := make([]string, len(vft))
		for j, m := range vft {
			names[j] = m.Name
		}
		vftables[i] = names
	}
	return jsonRecord{
		Address:     log.Hex(rec.Addr),
		PointerSize: rec.PointerSize,
		Typeinfo:    toJSONTypeinfo(rec.Typeinfo),
		Vftables:    vftables,
	}
}

func toJSONRecords(result *vtable.Result) []jsonRecord {
	records := make([]jsonRecord, len(result.Records))
	for i, rec := range result.Records {
		records[i] = toJSONRecord(rec)
	}
	return records
}

// WriteJSON encodes result as the spec.md §6 JSON array, with no envelope.
func WriteJSON(w io.Writer, result *vtable.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toJSONRecords(result))
}

// WriteJSONEnvelope encodes result wrapped in an Envelope, for
// --json-envelope.
func WriteJSONEnvelope(w io.Writer, result *vtable.Result, runID, binary string, generatedAt time.Time) error {
	env := Envelope{
		RunID:       runID,
		Binary:      binary,
		GeneratedAt: generatedAt,
		Vtables:     toJSONRecords(result),
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}
