package casefile

import "testing"

func strPtr(s string) *string { return &s }

func TestCaseFields_Named(t *testing.T) {
	f := CaseFields{Company: strPtr("Fringles"), CurrentQuestion: strPtr("why?")}
	named := f.Named()

	want := []string{"company", "industry", "geography", "hypothesis_tree", "current_question"}
	if len(named) != len(want) {
		t.Fatalf("Named() len = %d, want %d", len(named), len(want))
	}
	for i, nf := range named {
		if nf.Name != want[i] {
			t.Errorf("Named()[%d].Name = %q, want %q", i, nf.Name, want[i])
		}
	}
	if named[0].Value == nil || *named[0].Value != "Fringles" {
		t.Errorf("company = %v, want Fringles", named[0].Value)
	}
	if named[1].Value != nil {
		t.Errorf("industry = %v, want nil", named[1].Value)
	}
}

func TestCaseFields_IsEmpty(t *testing.T) {
	if !(CaseFields{}).IsEmpty() {
		t.Error("zero CaseFields should be empty")
	}
	if (CaseFields{Geography: strPtr("")}).IsEmpty() {
		t.Error("a set empty-string field is still a set field")
	}
}

func TestCountChars(t *testing.T) {
	tests := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"hello", 5},
		{"héllo", 5},
		{"日本語", 3},
	}
	for _, tt := range tests {
		if got := CountChars(tt.input); got != tt.want {
			t.Errorf("CountChars(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}
