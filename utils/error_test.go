package utils

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"validation", Invalidf("quantity %d too large", 99), ErrorKindValidation},
		{"invalid transition", &InvalidTransitionError{From: "Created", To: "Overdue"}, ErrorKindValidation},
		{"not found", ErrorRecordNotFound, ErrorKindNotFound},
		{"wrapped not found", fmt.Errorf("fetch order: %w", ErrorRecordNotFound), ErrorKindNotFound},
		{"wrapped validation", fmt.Errorf("entry 3: %w", Invalidf("bad input")), ErrorKindValidation},
		{"unknown", errors.New("disk on fire"), ErrorKindUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyError(tc.err); got != tc.want {
				t.Fatalf("ClassifyError = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestInvalidTransitionErrorMessage(t *testing.T) {
	err := &InvalidTransitionError{From: "Received", To: "Created"}
	want := "invalid status transition from Received to Created"
	if err.Error() != want {
		t.Fatalf("message = %q, want %q", err.Error(), want)
	}
}
