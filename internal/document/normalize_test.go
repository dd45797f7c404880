package document

import (
	"strings"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"control chars", "a\x00b\x07c\x0bd\x1fe\x7ff", "abcdef"},
		{"keeps newline as space", "line one\nline two\r\nline three", "line one line two line three"},
		{"collapses whitespace", "  many   spaces\t\there  ", "many spaces here"},
		{"english page marker", "intro Page 3 of 12 body", "intro body"},
		{"portuguese page marker", "resumo Página 2 de 9 conclusão", "resumo conclusão"},
		{"marker case insensitive", "x PAGE 1 OF 2 y página 4 DE 5 z", "x y z"},
		{"spliced marker", "a Page Page 1 of 2 1 of 3 b", "a b"},
		{"only marker", "Page 1 of 1", ""},
		{"no-break space run", "alpha\u00a0\u00a0\u00a0beta", "alpha beta"},
		{"no-break space marker", "resumo Página\u00a02\u00a0de\u00a09 conclusão", "resumo conclusão"},
		{"mixed unicode spaces", "a\u2009\u00a0 b\u3000c", "a b c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_NoControlOrDoubleSpace(t *testing.T) {
	inputs := []string{
		"\x01Solo\x02 argiloso\x1f\x1f com   \x7f alto teor",
		"\t\tCana\x0c-de-açúcar\x0e\n\n\nRB867515  ",
		"N\x00P\x00K  Page 10 of 20  \x03",
		"Solo\u00a0\u00a0argiloso \u00a0Página\u00a02 de 9\u00a0 fim",
	}
	for _, in := range inputs {
		got := Normalize(in)
		for _, r := range got {
			if r < 0x20 || r == 0x7f {
				t.Errorf("Normalize(%q) = %q contains control char %U", in, got, r)
			}
		}
		if strings.Contains(got, "  ") {
			t.Errorf("Normalize(%q) = %q contains doubled whitespace", in, got)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"",
		"plain",
		"  Página 1 de 3\x00 Resumo:\tEfeito  da calagem  ",
		"a Page Page 1 of 2 1 of 3 b",
		"Page 1 of\x00 2",
	}
	for _, in := range inputs {
		once := Normalize(in)
		if twice := Normalize(once); twice != once {
			t.Errorf("Normalize not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}
