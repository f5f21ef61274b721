package scheduler

import "testing"

func TestCoerceNumeric(t *testing.T) {
	tests := []struct {
		name    string
		in      interface{}
		wantVal float64
		wantOk  bool
	}{
		{"nil is not numeric", nil, 0, false},
		{"float64 passes through", float64(12.5), 12.5, true},
		{"int converts", int(7), 7, true},
		{"int64 converts", int64(9), 9, true},
		{"numeric string parses", "3.25", 3.25, true},
		{"non-numeric string is not numeric", "DNF", 0, false},
		{"bool is not numeric", true, 0, false},
		{"empty string is not numeric", "", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			val, ok := coerceNumeric(tt.in)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if ok && val != tt.wantVal {
				t.Fatalf("val = %v, want %v", val, tt.wantVal)
			}
		})
	}
}

func TestCoerceNumericPtr(t *testing.T) {
	if p := coerceNumericPtr(nil); p != nil {
		t.Fatalf("expected nil pointer for nil input, got %v", *p)
	}
	if p := coerceNumericPtr("not a number"); p != nil {
		t.Fatalf("expected nil pointer for unparseable input, got %v", *p)
	}
	p := coerceNumericPtr(float64(5))
	if p == nil || *p != 5 {
		t.Fatalf("expected pointer to 5, got %v", p)
	}
}

func TestStatFields_NoDuplicates(t *testing.T) {
	seen := make(map[string]bool, len(statFields))
	for _, f := range statFields {
		if seen[f] {
			t.Fatalf("duplicate stat field %q", f)
		}
		seen[f] = true
	}
	if len(statFields) < 60 {
		t.Fatalf("expected 60+ stat fields, got %d", len(statFields))
	}
}
