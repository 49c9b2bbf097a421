package helpers

import "testing"

func TestCleanReply(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{in: "  ИТМО рейтинг QS  ", want: "ИТМО рейтинг QS"},
		{in: "\uFEFFДа", want: "Да"},
		{in: "«ИТМО кампусы»", want: "ИТМО кампусы"},
		{in: `"'ITMO labs'"`, want: "ITMO labs"},
		{in: "```text\nИТМО ректор\n```", want: "ИТМО ректор"},
		{in: "~~~\nquery\n~~~", want: "query"},
		{in: "```unterminated", want: "```unterminated"},
		{in: `"`, want: `"`},
		{in: "", want: ""},
	}
	for _, tc := range cases {
		if got := CleanReply(tc.in); got != tc.want {
			t.Errorf("CleanReply(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFirstLine(t *testing.T) {
	t.Parallel()
	cases := map[string]string{
		"one\ntwo":        "one",
		"\n\n  two  \nx": "two",
		"   ":             "",
		"single":          "single",
	}
	for in, want := range cases {
		if got := FirstLine(in); got != want {
			t.Errorf("FirstLine(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanLine(t *testing.T) {
	t.Parallel()
	cases := []struct {
		in   string
		want string
	}{
		{in: "«ИТМО кампусы»\nЭтот запрос найдёт список кампусов.", want: "ИТМО кампусы"},
		{in: "«Да»\nпояснение", want: "Да"},
		{in: "```\n\"ИТМО ректор\"\nпервая строка\n```", want: "ИТМО ректор"},
		{in: "\"whole\nreply\"", want: "whole"},
		{in: "plain", want: "plain"},
		{in: "  \n ", want: ""},
	}
	for _, tc := range cases {
		if got := CleanLine(tc.in); got != tc.want {
			t.Errorf("CleanLine(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
