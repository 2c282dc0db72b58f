package wire

import "testing"

func TestScenarioEParseAndFormat(t *testing.T) {
	cases := []struct {
		spec string
		want Key
	}{
		{"<c-a>", Key{Kind: KeyCtrl, Rune: 'a'}},
		{"<a-9>", Key{Kind: KeyAlt, Rune: '9'}},
		{"<f12>", Key{Kind: KeyF, N: 12}},
		{"<space>", Key{Kind: KeyChar, Rune: ' '}},
		{"<less>", Key{Kind: KeyChar, Rune: '<'}},
	}
	for _, c := range cases {
		got, err := Parse(c.spec)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.spec, err)
		}
		if got != c.want {
			t.Errorf("Parse(%q) = %+v, want %+v", c.spec, got, c.want)
		}
		back := Format(got)
		reparsed, err := Parse(back)
		if err != nil {
			t.Fatalf("Parse(Format(%q)) = %q: %v", c.spec, back, err)
		}
		if reparsed != got {
			t.Errorf("round trip mismatch for %q: formatted as %q, reparsed to %+v", c.spec, back, reparsed)
		}
	}
}

func TestKeyRoundTripAllKinds(t *testing.T) {
	keys := []Key{
		{Kind: KeyBackspace},
		{Kind: KeyEnter},
		{Kind: KeyLeft},
		{Kind: KeyRight},
		{Kind: KeyUp},
		{Kind: KeyDown},
		{Kind: KeyHome},
		{Kind: KeyEnd},
		{Kind: KeyPageUp},
		{Kind: KeyPageDown},
		{Kind: KeyTab},
		{Kind: KeyDelete},
		{Kind: KeyEsc},
		{Kind: KeyF, N: 1},
		{Kind: KeyF, N: 99},
		{Kind: KeyChar, Rune: 'x'},
		{Kind: KeyChar, Rune: '>'},
		{Kind: KeyCtrl, Rune: 'z'},
		{Kind: KeyAlt, Rune: 'q'},
	}
	for _, k := range keys {
		spec := Format(k)
		got, err := Parse(spec)
		if err != nil {
			t.Fatalf("Parse(Format(%+v)) = %q: %v", k, spec, err)
		}
		if got != k {
			t.Errorf("round trip for %+v: formatted %q, got %+v", k, spec, got)
		}
	}
}
