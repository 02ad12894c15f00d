package normalize

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type vendorTimestamp struct{ sec int64 }

func (v vendorTimestamp) AsTime() time.Time { return time.Unix(v.sec, 0) }

func TestRecord(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	const iso = "2023-11-14T22:13:20.000Z"

	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "top-level time.Time",
			in:   map[string]any{"timestamp": ts, "id": "r1"},
			want: map[string]any{"timestamp": iso, "id": "r1"},
		},
		{
			name: "protobuf timestamp",
			in:   map[string]any{"timestamp": timestamppb.New(ts)},
			want: map[string]any{"timestamp": iso},
		},
		{
			name: "custom vendor type",
			in:   map[string]any{"at": vendorTimestamp{sec: 1700000000}},
			want: map[string]any{"at": iso},
		},
		{
			name: "non-UTC zone is converted",
			in:   map[string]any{"at": ts.In(time.FixedZone("CET", 3600))},
			want: map[string]any{"at": iso},
		},
		{
			name: "milliseconds are kept",
			in:   map[string]any{"at": ts.Add(123*time.Millisecond + 456*time.Microsecond)},
			want: map[string]any{"at": "2023-11-14T22:13:20.123Z"},
		},
		{
			name: "nested record",
			in: map[string]any{
				"meta": map[string]any{"created": ts, "by": "ci"},
			},
			want: map[string]any{
				"meta": map[string]any{"created": iso, "by": "ci"},
			},
		},
		{
			name: "records inside sequences",
			in: map[string]any{
				"features": []any{
					map[string]any{"startedAt": &ts, "scenarios": []any{
						map[string]any{"at": timestamppb.New(ts)},
					}},
					"plain",
					ts,
				},
			},
			want: map[string]any{
				"features": []any{
					map[string]any{"startedAt": iso, "scenarios": []any{
						map[string]any{"at": iso},
					}},
					"plain",
					iso,
				},
			},
		},
		{
			name: "typed record slice",
			in:   map[string]any{"rows": []map[string]any{{"at": ts}}},
			want: map[string]any{"rows": []map[string]any{{"at": iso}}},
		},
		{
			name: "nulls and scalars pass through",
			in: map[string]any{
				"error": nil, "duration": 12.5, "ok": true, "count": int64(3),
				"missing": (*timestamppb.Timestamp)(nil),
			},
			want: map[string]any{
				"error": nil, "duration": 12.5, "ok": true, "count": int64(3),
				"missing": nil,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Record(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Record() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRecord_Idempotent(t *testing.T) {
	in := map[string]any{
		"id":        "r1",
		"timestamp": "2023-11-14T22:13:20.000Z",
		"summary":   map[string]any{"total": 3.0, "passed": 2.0},
		"features":  []any{map[string]any{"name": "login"}, "x", nil},
		"error":     nil,
	}

	once := Record(in)
	if diff := cmp.Diff(in, once); diff != "" {
		t.Errorf("Record() changed a timestamp-free record (-in +out):\n%s", diff)
	}
	twice := Record(once)
	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("Record() not idempotent (-once +twice):\n%s", diff)
	}
}

func TestRecord_DoesNotMutateInput(t *testing.T) {
	ts := time.Unix(1700000000, 0)
	nested := map[string]any{"at": ts}
	seq := []any{ts}
	in := map[string]any{"nested": nested, "seq": seq}

	_ = Record(in)

	if _, ok := nested["at"].(time.Time); !ok {
		t.Error("nested input map was mutated")
	}
	if _, ok := seq[0].(time.Time); !ok {
		t.Error("input slice was mutated")
	}
}

func TestRecord_Nil(t *testing.T) {
	if got := Record(nil); got != nil {
		t.Errorf("Record(nil) = %v, want nil", got)
	}
}
