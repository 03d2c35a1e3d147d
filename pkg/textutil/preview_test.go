package textutil

import "testing"

func TestPreview(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"plain", "hello", 80, "hello"},
		{"strips tags", "<b>bold</b> <script>x()</script>text", 80, "bold text"},
		{"block tags split words", "<p>one</p><p>two</p>", 80, "one two"},
		{"unescapes entities", "fish &amp; chips", 80, "fish & chips"},
		{"collapses whitespace", "a \n\t  b", 80, "a b"},
		{"truncates", "abcdefghij", 4, "abcd..."},
		{"exact length kept", "abcd", 4, "abcd"},
		{"rune safe", "héllo wörld", 5, "héllo..."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Preview(tc.in, tc.max); got != tc.want {
				t.Fatalf("Preview(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}
