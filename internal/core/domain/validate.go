package domain

import "regexp"

var bytes32HexPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{64}$`)

// ValidateBytes32Hex reports whether s matches the 0x-prefixed,
// 64-hex-char identifier shape used for entity ids and previous-entity
// hashes.
func ValidateBytes32Hex(field, s string) error {
	if !bytes32HexPattern.MatchString(s) {
		return &ValidationError{Field: field, Message: "must be 0x followed by 64 hex characters"}
	}
	return nil
}
