package scanledger

import "context"

// Store is the append-only ledger. There is deliberately no update or delete.
type Store interface {
	// Append adds a record to the ledger. Records for one code are kept in
	// append order; ScannedAt is expected to be non-decreasing per code.
	Append(ctx context.Context, record ScanRecord) error

	// HasPriorScan reports whether the code has been scanned before and, if
	// so, returns the earliest record. The lookup is O(1) on the code.
	HasPriorScan(ctx context.Context, code string) (bool, *ScanRecord, error)

	// ListByCode returns every record for the code in append order.
	ListByCode(ctx context.Context, code string) ([]ScanRecord, error)
}
