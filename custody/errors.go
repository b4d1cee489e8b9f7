package custody

import "errors"

var errFreezeUnavailable = errors.New("custody: freeze unavailable")
