package epub

import "errors"

// Sentinel errors returned by the epub package.
var (
	// ErrCorruptArchive indicates the submitted bytes are not a readable
	// ZIP container at all.
	ErrCorruptArchive = errors.New("epub: corrupt archive")

	// ErrEntryMissing indicates the requested entry does not exist in the
	// container (or has been removed).
	ErrEntryMissing = errors.New("epub: entry not found")

	// ErrNoPackage indicates no OPF package document could be located.
	ErrNoPackage = errors.New("epub: no package document found")
)
