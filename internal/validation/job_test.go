package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateJobName(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expectValid bool
	}{
		{"simple", "sat-run", true},
		{"with_spaces", "SMT comp 2024", true},
		{"dots_and_plus", "z3.4+fix", true},
		{"exactly_32", strings.Repeat("a", 32), true},
		{"empty", "", false},
		{"blank", "   ", false},
		{"one_char", "a", false},
		{"too_long", strings.Repeat("a", 33), false},
		{"markup", "<b>job</b>", false},
		{"slash", "a/b", false},
		{"quote", "it's", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateJobName(tc.input)
			if tc.expectValid && err != nil {
				t.Errorf("ValidateJobName(%q) error = %v, want nil", tc.input, err)
			}
			if !tc.expectValid && err == nil {
				t.Errorf("ValidateJobName(%q) = nil, want error", tc.input)
			}
		})
	}
}

func TestValidateDescription(t *testing.T) {
	testCases := []struct {
		name        string
		input       string
		expectValid bool
	}{
		{"plain", "nightly regression over QF_BV", true},
		{"max_length", strings.Repeat("d", 1024), true},
		{"too_long", strings.Repeat("d", 1025), false},
		{"empty", "", false},
		{"script", "<script>", false},
		{"percent", "100%", false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateDescription(tc.input)
			if (err == nil) != tc.expectValid {
				t.Errorf("ValidateDescription(%q) error = %v, expectValid %v", tc.input, err, tc.expectValid)
			}
		})
	}
}

func TestValidateTimeout(t *testing.T) {
	testCases := []struct {
		seconds     int
		expectValid bool
	}{
		{1, true},
		{3600, true},
		{259200, true},
		{259201, false},
		{0, false},
		{-5, false},
	}
	for _, tc := range testCases {
		err := ValidateTimeout("cpu timeout", tc.seconds)
		if (err == nil) != tc.expectValid {
			t.Errorf("ValidateTimeout(%d) error = %v, expectValid %v", tc.seconds, err, tc.expectValid)
		}
	}
}

func TestRequiredFieldsWrapErrRequired(t *testing.T) {
	for _, err := range []error{
		ValidateJobName(""),
		ValidateDescription(""),
		ValidateTimeout("wallclock timeout", 0),
		ValidateQueue(0),
	} {
		if !errors.Is(err, ErrRequired) {
			t.Errorf("%v should wrap ErrRequired", err)
		}
	}
}

func TestJobFormValidate(t *testing.T) {
	valid := JobForm{
		Name:             "nightly",
		Description:      "regression run",
		CPUTimeout:       600,
		WallclockTimeout: 900,
		QueueID:          3,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}

	err := JobForm{Name: "x", CPUTimeout: 999999}.Validate()
	if err == nil {
		t.Fatal("Validate() = nil, want errors")
	}

	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("Validate() error %v does not contain a FieldError", err)
	}
	for _, field := range []string{"name", "description", "cpu timeout", "wallclock timeout", "queue"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("joined error %q does not mention %q", err.Error(), field)
		}
	}
}
