package validation

import (
	"strings"
	"testing"

	"github.com/orirot10/GIVEIT-sub000/internal/apperr"
)

func TestTrimAndLimit(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		max      int
		expected string
	}{
		{"Trims spaces", "  hello  ", 10, "hello"},
		{"Cuts long text", "hello world", 5, "hello"},
		{"Counts runes not bytes", "héllo wörld", 5, "héllo"},
		{"Zero means no limit", strings.Repeat("a", 50), 0, strings.Repeat("a", 50)},
		{"Whitespace only", " \n\t ", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimAndLimit(tt.input, tt.max)
			if result != tt.expected {
				t.Errorf("TrimAndLimit(%q, %d) = %q, want %q", tt.input, tt.max, result, tt.expected)
			}
		})
	}
}

func TestValidPlatform(t *testing.T) {
	tests := []struct {
		platform string
		expected bool
	}{
		{"android", true},
		{"ios", true},
		{" IOS ", true},
		{"web", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := ValidPlatform(tt.platform); got != tt.expected {
			t.Errorf("ValidPlatform(%q) = %v, want %v", tt.platform, got, tt.expected)
		}
	}
}

func TestValidClientID(t *testing.T) {
	if !ValidClientID("3f1c2b9e-8d4a-4f6e-9a7b-1c2d3e4f5a6b") {
		t.Error("expected uuid to be valid")
	}
	if ValidClientID("not-a-uuid") {
		t.Error("expected garbage to be invalid")
	}
}

type pushTokenRequest struct {
	Token    string `validate:"required"`
	Platform string `validate:"required,platform"`
}

func TestStruct(t *testing.T) {
	if err := Struct(pushTokenRequest{Token: "abc", Platform: "android"}); err != nil {
		t.Errorf("expected valid request, got %v", err)
	}

	err := Struct(pushTokenRequest{Platform: "android"})
	if !apperr.Is(err, apperr.CodeInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
	if apperr.MessageOf(err) != "token is required" {
		t.Errorf("unexpected message %q", apperr.MessageOf(err))
	}

	err = Struct(pushTokenRequest{Token: "abc", Platform: "blackberry"})
	if apperr.MessageOf(err) != apperr.MessageOf(apperr.ErrInvalidPlatform) {
		t.Errorf("unexpected message %q", apperr.MessageOf(err))
	}
}
