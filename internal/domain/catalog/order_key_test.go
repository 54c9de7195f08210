package catalog

import "testing"

func TestParseOrderKey(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{raw: "5", want: 5},
		{raw: "12.5", want: 12.5},
		{raw: "Chapter 12", want: 12},
		{raw: "Ch. 7", want: 0.7},
		{raw: "1.2.3", want: 1.2},
		{raw: "-3", want: 3},
		{raw: "extra", want: 0},
		{raw: "", want: 0},
		{raw: ".", want: 0},
		{raw: ".5", want: 0.5},
	}

	for _, tc := range cases {
		if got := ParseOrderKey(tc.raw); got != tc.want {
			t.Fatalf("ParseOrderKey(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestFormatOrderKey(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{in: 3, want: "3"},
		{in: int64(10), want: "10"},
		{in: 10.5, want: "10.5"},
		{in: " 11 ", want: "11"},
		{in: nil, want: ""},
	}

	for _, tc := range cases {
		if got := FormatOrderKey(tc.in); got != tc.want {
			t.Fatalf("FormatOrderKey(%#v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeTagAndPaging(t *testing.T) {
	if got := NormalizeTag("  Slice of  Life "); got != "slice-of-life" {
		t.Fatalf("NormalizeTag() = %q", got)
	}
	if got := DisplayTag("slice-of-life"); got != "SLICE OF LIFE" {
		t.Fatalf("DisplayTag() = %q", got)
	}
	if got := TotalPages(49, 24); got != 3 {
		t.Fatalf("TotalPages(49, 24) = %d, want 3", got)
	}
	if got := TotalPages(0, 24); got != 0 {
		t.Fatalf("TotalPages(0, 24) = %d, want 0", got)
	}
	if got := PageOffset(0, 24); got != 0 {
		t.Fatalf("PageOffset(0, 24) = %d, want 0", got)
	}
	if got := PageOffset(3, 24); got != 48 {
		t.Fatalf("PageOffset(3, 24) = %d, want 48", got)
	}
}
