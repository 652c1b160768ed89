package domain

import (
	"fmt"
	"regexp"
	"strconv"
	"time"

	dErrors "veritag/pkg/domain-errors"
)

// Code is the human-scannable identity token printed on one sellable unit.
// The wire format is bit-exact:
//
//	{2-4 uppercase letters}-{4-digit zero-padded sequence}-{YYYYMMDD}
//
// e.g. UP-0001-20250114. Parsing is the only way to obtain a Code from
// untrusted input, so a Code value always satisfies the grammar.
type Code struct {
	Prefix         string
	Sequence       int
	ProductionDate time.Time
}

// MaxSequence is the highest sequence the 4-digit field can carry. Issuance
// for a (prefix, production date) pair fails once the space is exhausted.
const MaxSequence = 9999

const dateLayout = "20060102"

var codePattern = regexp.MustCompile(`^([A-Z]{2,4})-(\d{4})-(\d{8})$`)

// ParseCode validates s against the code grammar. Grammar violations return a
// malformed_code error; they are the scanner-facing "this is not even a code"
// outcome, distinct from "well-formed but never issued".
func ParseCode(s string) (Code, error) {
	m := codePattern.FindStringSubmatch(s)
	if m == nil {
		return Code{}, dErrors.New(dErrors.CodeMalformedCode, "code does not match PREFIX-NNNN-YYYYMMDD")
	}
	seq, err := strconv.Atoi(m[2])
	if err != nil || seq < 1 {
		return Code{}, dErrors.New(dErrors.CodeMalformedCode, "code sequence must be between 0001 and 9999")
	}
	date, err := time.ParseInLocation(dateLayout, m[3], time.UTC)
	if err != nil {
		return Code{}, dErrors.New(dErrors.CodeMalformedCode, "code date is not a valid calendar date")
	}
	return Code{Prefix: m[1], Sequence: seq, ProductionDate: date}, nil
}

// NewCode builds a Code from trusted parts, validating the same invariants
// ParseCode enforces. Used by the issuer, which controls all three fields.
func NewCode(prefix string, sequence int, productionDate time.Time) (Code, error) {
	if len(prefix) < 2 || len(prefix) > 4 {
		return Code{}, dErrors.Newf(dErrors.CodeBadRequest, "code prefix %q must be 2-4 uppercase letters", prefix)
	}
	for _, r := range prefix {
		if r < 'A' || r > 'Z' {
			return Code{}, dErrors.Newf(dErrors.CodeBadRequest, "code prefix %q must be 2-4 uppercase letters", prefix)
		}
	}
	if sequence < 1 || sequence > MaxSequence {
		return Code{}, dErrors.Newf(dErrors.CodeBadRequest, "code sequence %d out of range 1..%d", sequence, MaxSequence)
	}
	return Code{Prefix: prefix, Sequence: sequence, ProductionDate: productionDate.UTC()}, nil
}

// String re-encodes the code in its canonical wire form.
func (c Code) String() string {
	return fmt.Sprintf("%s-%04d-%s", c.Prefix, c.Sequence, c.ProductionDate.Format(dateLayout))
}

// CanonicalBytes is the byte representation hashed into the batch manifest.
// It is exactly the wire form, so a reprinted label hashes identically and an
// altered one does not.
func (c Code) CanonicalBytes() []byte {
	return []byte(c.String())
}

// SequenceKey identifies the per-day, per-product namespace in which the
// sequence number must be unique and monotonically increasing.
func (c Code) SequenceKey() string {
	return c.Prefix + ":" + c.ProductionDate.Format(dateLayout)
}
