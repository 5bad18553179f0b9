package sheet

import (
	"os"
	"testing"

	"golang.org/x/exp/ebnf"
)

func TestFormulaGrammar(t *testing.T) {
	const filename = "testdata/formula.ebnf"
	f, err := os.Open(filename)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	g, err := ebnf.Parse(filename, f)
	if err != nil {
		t.Fatal(err)
	}
	if err := ebnf.Verify(g, "Formula"); err != nil {
		t.Fatal(err)
	}
}

// Every production of the grammar has a formula that exercises it.
func TestGrammarExamples(t *testing.T) {
	for _, raw := range []string{
		"=1",
		"=.5e-3",
		`="say ""hi"""`,
		"=A1",
		"=-(x + 2) * 3",
		"=--1",
		"=1 < 2 = 1",
		"=a <> b",
		"=SUM(1, 2, 3,)",
		"=IF(A >= 1, MIN(A, 10), MAX(0))",
	} {
		if err := Check(raw); err != nil {
			t.Errorf("Check(%q) = %v", raw, err)
		}
	}
}
