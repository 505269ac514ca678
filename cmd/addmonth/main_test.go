package main

import (
	"testing"

	"inflacion/internal/core"
)

func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    core.ManualEntry
		wantErr bool
	}{
		{
			name: "monthly only",
			arg:  "2025-06=4.5",
			want: core.ManualEntry{Year: 2025, Month: 6, Monthly: 4.5},
		},
		{
			name: "monthly and annual",
			arg:  "2025-06=4.5,39.4",
			want: core.ManualEntry{Year: 2025, Month: 6, Monthly: 4.5, Annual: core.Float(39.4)},
		},
		{
			name: "all three",
			arg:  "2025-06=4.5,39.4,8123.2",
			want: core.ManualEntry{Year: 2025, Month: 6, Monthly: 4.5, Annual: core.Float(39.4), Index: core.Float(8123.2)},
		},
		{
			name: "empty annual with index",
			arg:  "2025-06=4.5,,8123.2",
			want: core.ManualEntry{Year: 2025, Month: 6, Monthly: 4.5, Index: core.Float(8123.2)},
		},
		{name: "missing equals", arg: "2025-06", wantErr: true},
		{name: "bad month", arg: "06/2025=4.5", wantErr: true},
		{name: "bad monthly", arg: "2025-06=abc", wantErr: true},
		{name: "too many values", arg: "2025-06=1,2,3,4", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEntry(tt.arg)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("parseEntry(%q) = %+v, want error", tt.arg, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseEntry(%q) error = %v", tt.arg, err)
			}
			if got != tt.want {
				t.Errorf("parseEntry(%q) = %+v, want %+v", tt.arg, got, tt.want)
			}
		})
	}
}
