package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/leadassign-backend/pkg/errors"
)

func TestParseQueryInt(t *testing.T) {
	cases := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{query: "", want: 20},
		{query: "limit=5", want: 5},
		{query: "limit=abc", wantErr: true},
		{query: "limit=0", wantErr: true},
		{query: "limit=101", wantErr: true},
	}
	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/x?"+tc.query, nil)
		got, err := ParseQueryInt(req, "limit", 20, 1, 100)
		if tc.wantErr {
			if pkgerrors.As(err) == nil || pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
				t.Fatalf("%q: expected validation error, got %v", tc.query, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("%q: got %d, %v", tc.query, got, err)
		}
	}
}

func TestParseQueryBool(t *testing.T) {
	req := httptest.NewRequest("GET", "/x?include_inactive=true", nil)
	if v, err := ParseQueryBool(req, "include_inactive"); err != nil || !v {
		t.Fatalf("expected true, got %v %v", v, err)
	}
	req = httptest.NewRequest("GET", "/x", nil)
	if v, err := ParseQueryBool(req, "include_inactive"); err != nil || v {
		t.Fatalf("expected default false, got %v %v", v, err)
	}
	req = httptest.NewRequest("GET", "/x?include_inactive=maybe", nil)
	if _, err := ParseQueryBool(req, "include_inactive"); err == nil {
		t.Fatal("expected error for non-boolean")
	}
}

func TestParseCursorRejectsOversized(t *testing.T) {
	req := httptest.NewRequest("GET", "/x?cursor="+strings.Repeat("a", maxCursorLength+1), nil)
	if _, err := ParseCursor(req); err == nil {
		t.Fatal("expected oversized cursor to fail")
	}
}
