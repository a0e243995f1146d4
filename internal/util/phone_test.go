package util

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "mexican wa_id", in: "5215512345678", want: "525512345678"},
		{name: "short input passes through", in: "52", want: "52"},
		{name: "empty input", in: "", want: ""},
		{name: "exactly three digits", in: "521", want: "52"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.in); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseBoolEnv(t *testing.T) {
	t.Setenv("BANKLINE_TEST_FLAG", "yes")
	if !ParseBoolEnv("BANKLINE_TEST_FLAG", false) {
		t.Error("expected yes to parse as true")
	}
	t.Setenv("BANKLINE_TEST_FLAG", "off")
	if ParseBoolEnv("BANKLINE_TEST_FLAG", true) {
		t.Error("expected off to parse as false")
	}
	t.Setenv("BANKLINE_TEST_FLAG", "maybe")
	if !ParseBoolEnv("BANKLINE_TEST_FLAG", true) {
		t.Error("expected invalid value to fall back to default")
	}
	t.Setenv("BANKLINE_TEST_FLAG", "")
	if ParseBoolEnv("BANKLINE_TEST_FLAG", false) {
		t.Error("expected empty value to fall back to default")
	}
}
