package utils

import "testing"

func TestExtractJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"prose around", "Sure! Here you go: {\"nudges\":[{\"title\":\"x}\"}]} hope it helps", `{"nudges":[{"title":"x}"}]}`},
		{"array", "result: [1,2,3] done", `[1,2,3]`},
		{"fence after prose", "Here:\n```\n{\"delta\":0.2}\n```\nthanks", `{"delta":0.2}`},
	}
	for _, tc := range cases {
		got, ok := ExtractJSON(tc.in)
		if !ok {
			t.Fatalf("%s: expected json to be recovered", tc.name)
		}
		if string(got) != tc.want {
			t.Fatalf("%s: got %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestExtractJSONFailsClosed(t *testing.T) {
	for _, in := range []string{"", "no json here", "{\"a\": ", "```\nnot json\n```"} {
		if got, ok := ExtractJSON(in); ok {
			t.Fatalf("expected failure for %q, got %s", in, got)
		}
	}
}

func TestCharCodeSum(t *testing.T) {
	if got := CharCodeSum("ab"); got != 97+98 {
		t.Fatalf("unexpected sum %d", got)
	}
	if got := CharCodeSum(""); got != 0 {
		t.Fatalf("expected 0 for empty string, got %d", got)
	}
}
