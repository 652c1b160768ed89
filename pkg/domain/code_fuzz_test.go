package domain

import "testing"

// FuzzParseCode verifies the parser never panics on arbitrary scanner input
// and that accepted codes round-trip through their canonical form.
func FuzzParseCode(f *testing.F) {
	f.Add("UP-0001-20250114")
	f.Add("NPKS-9999-19700101")
	f.Add("")
	f.Add("UP-0001-20250114\x00")
	f.Add("'; DROP TABLE codes;--")

	f.Fuzz(func(t *testing.T, input string) {
		c, err := ParseCode(input)
		if err != nil {
			return
		}
		reparsed, err2 := ParseCode(c.String())
		if err2 != nil {
			t.Errorf("accepted code failed round-trip: %v", err2)
		}
		if reparsed != c {
			t.Error("round-trip changed code value")
		}
	})
}
