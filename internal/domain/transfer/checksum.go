package transfer

import (
	"fmt"
	"strconv"
	"strings"
)

// Checksum is the CRC-32 (IEEE) the archive records for an ingested file.
type Checksum uint32

// String renders the checksum as eight lowercase hex digits.
func (c Checksum) String() string { return fmt.Sprintf("%08x", uint32(c)) }

// ParseChecksum parses a hex rendering, with or without a 0x prefix.
func ParseChecksum(s string) (Checksum, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing checksum %q: %w", s, err)
	}
	return Checksum(v), nil
}
