package spacebatch

import "testing"

func TestParseDirection(t *testing.T) {
	tests := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{in: "space-to-batch", want: SpaceToBatch},
		{in: " S2B ", want: SpaceToBatch},
		{in: "batch-to-space", want: BatchToSpace},
		{in: "b2s", want: BatchToSpace},
		{in: "sideways", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseDirection(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("ParseDirection(%q) expected error", tt.in)
			}

			continue
		}

		if err != nil {
			t.Fatalf("ParseDirection(%q): %v", tt.in, err)
		}

		if got != tt.want {
			t.Fatalf("ParseDirection(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDirectionString(t *testing.T) {
	if got := BatchToSpace.String(); got != "batch-to-space" {
		t.Fatalf("String() = %q", got)
	}

	if got := Direction(7).String(); got != "Direction(7)" {
		t.Fatalf("String() = %q", got)
	}
}
