package lexer

import "testing"

func tokenTypes(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func assertTypes(t *testing.T, got []TokenType, want []TokenType) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d (%v vs %v)", len(got), len(want), got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestScanKeywordsAndIdent(t *testing.T) {
	s := NewScanner("workspace Build { stage compile() { } }")
	got := tokenTypes(s.ScanTokens())
	want := []TokenType{
		TokenWorkspace, TokenIdent, TokenLBrace,
		TokenStage, TokenIdent, TokenLParen, TokenRParen, TokenLBrace, TokenRBrace,
		TokenRBrace, TokenEOF,
	}
	assertTypes(t, got, want)
}

func TestScanIntAndFloatLiterals(t *testing.T) {
	s := NewScanner("1 2.5 10")
	got := s.ScanTokens()
	want := []TokenType{TokenInt, TokenFloat, TokenInt, TokenEOF}
	assertTypes(t, tokenTypes(got), want)
	if got[1].Lexeme != "2.5" {
		t.Fatalf("float lexeme = %q, want %q", got[1].Lexeme, "2.5")
	}
}

func TestScanStringEscapes(t *testing.T) {
	s := NewScanner(`"hello\nworld\t\"quoted\""`)
	got := s.ScanTokens()
	if len(s.Errors()) != 0 {
		t.Fatalf("unexpected scan errors: %v", s.Errors())
	}
	want := "hello\nworld\t\"quoted\""
	if got[0].Lexeme != want {
		t.Fatalf("string lexeme = %q, want %q", got[0].Lexeme, want)
	}
}

func TestScanOperators(t *testing.T) {
	s := NewScanner("a == b != c <= d >= e && f || !g")
	got := tokenTypes(s.ScanTokens())
	want := []TokenType{
		TokenIdent, TokenDoubleEqual, TokenIdent, TokenNotEqual, TokenIdent,
		TokenLE, TokenIdent, TokenGE, TokenIdent, TokenAnd, TokenIdent,
		TokenOr, TokenNot, TokenIdent, TokenEOF,
	}
	assertTypes(t, got, want)
}

func TestScanLineCommentIgnored(t *testing.T) {
	s := NewScanner("x = 1 // a trailing comment\ny = 2")
	got := tokenTypes(s.ScanTokens())
	want := []TokenType{
		TokenIdent, TokenEqual, TokenInt,
		TokenIdent, TokenEqual, TokenInt, TokenEOF,
	}
	assertTypes(t, got, want)
}

func TestScanBlockComment(t *testing.T) {
	s := NewScanner("x /* skip\nthis */ = 1")
	got := tokenTypes(s.ScanTokens())
	want := []TokenType{TokenIdent, TokenEqual, TokenInt, TokenEOF}
	assertTypes(t, got, want)
}

func TestScanUnterminatedStringRecordsError(t *testing.T) {
	s := NewScanner(`"oops`)
	s.ScanTokens()
	if len(s.Errors()) == 0 {
		t.Fatalf("expected an unterminated-string error")
	}
}

func TestScanAttributeToken(t *testing.T) {
	s := NewScanner("@entrypoint workspace Main {}")
	got := tokenTypes(s.ScanTokens())
	want := []TokenType{
		TokenAt, TokenIdent, TokenWorkspace, TokenIdent, TokenLBrace, TokenRBrace, TokenEOF,
	}
	assertTypes(t, got, want)
}

func TestScanShebangSkipped(t *testing.T) {
	s := NewScanner("#!/usr/bin/env mainstage\nworkspace X {}")
	got := tokenTypes(s.ScanTokens())
	want := []TokenType{TokenWorkspace, TokenIdent, TokenLBrace, TokenRBrace, TokenEOF}
	assertTypes(t, got, want)
}
