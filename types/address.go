package types

import "strings"

// Address identifies an actor on the custody layer: a borrower, a merchant,
// a liquidity provider, the pool itself, or a protocol component. The engine
// treats addresses as opaque identities; the custody asset gives them meaning.
type Address string

// AddressZero is the invalid empty identity.
const AddressZero Address = ""

// IsZero reports whether the address is the empty identity.
func (a Address) IsZero() bool { return strings.TrimSpace(string(a)) == "" }

// String returns the raw address string.
func (a Address) String() string { return string(a) }
