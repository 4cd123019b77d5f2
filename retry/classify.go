package retry

import "strings"

// IsRetryableGeneric is the driver-agnostic fallback classifier: it matches
// error message substrings the way the original implementation did before
// driver-specific error codes were available. Dialect engines should prefer
// a typed classifier (see enginesql) and fall back to this one for errors
// they don't otherwise recognize.
func IsRetryableGeneric(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, cond := range []string{
		"connection", "timeout", "deadlock", "lock", "temporary",
		"network", "broken pipe", "connection reset", "connection refused",
		"could not serialize", "serialization failure", "lock wait timeout",
	} {
		if strings.Contains(s, cond) {
			return true
		}
	}
	return false
}

// IsDeadlockGeneric matches the subset of IsRetryableGeneric's conditions
// that specifically indicate a deadlock or serialization conflict, as
// opposed to a plain connection hiccup.
func IsDeadlockGeneric(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	for _, cond := range []string{
		"deadlock detected", "deadlock found",
		"could not serialize access", "serialization failure",
		"lock wait timeout",
	} {
		if strings.Contains(s, cond) {
			return true
		}
	}
	return false
}
