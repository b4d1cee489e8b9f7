package bnpl

import "github.com/xraph/bnpl/id"

// ID is the TypeID used for mirror and dispute records. Loan IDs are plain
// monotonic integers, not TypeIDs.
type ID = id.ID

// Prefix identifies the record type encoded in a TypeID.
type Prefix = id.Prefix
