// Package accounts decodes migration definitions from raw program accounts.
//
// The account layout is a documented heuristic, not a canonical program
// interface: all offsets live in this file so a corrected layout can be
// swapped in without touching sync or cache code.
package accounts

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"sort"
	"time"

	"filippo.io/edwards25519"

	"zera-sync/internal/domain"
)

// Heuristic account layout offsets.
const (
	// migrationIDLenOffset is where a little-endian uint32 holds the
	// length of the migration id string.
	migrationIDLenOffset = 8
	// migrationIDOffset is where the migration id string starts.
	migrationIDOffset = 12
	// pubkeySize is the length of a Solana public key.
	pubkeySize = 32
)

// Timestamp candidates must fall inside this window to be considered dates.
var (
	timestampMin = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	timestampMax = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
)

// Decoder decodes raw migration program accounts.
type Decoder struct {
	now func() time.Time
}

// NewDecoder creates a Decoder using wall-clock time for status derivation.
func NewDecoder() *Decoder {
	return &Decoder{now: time.Now}
}

// WithNow overrides the clock (tests).
func (d *Decoder) WithNow(now func() time.Time) *Decoder {
	d.now = now
	return d
}

// Decode parses base64 account data into a MigrationAccount. A malformed
// account yields a placeholder record carrying the failure reason in
// DecodeErr; Decode never returns an error so one bad account cannot abort
// a batch decode.
func (d *Decoder) Decode(pubkey, rawBase64 string) domain.MigrationAccount {
	record := domain.MigrationAccount{
		Pubkey: pubkey,
		Status: domain.MigrationUnknown,
	}

	buf, err := base64.StdEncoding.DecodeString(rawBase64)
	if err != nil {
		record.DecodeErr = fmt.Sprintf("decode base64: %v", err)
		return record
	}

	if err := d.decodeInto(&record, buf); err != nil {
		record.DecodeErr = err.Error()
		record.Status = domain.MigrationUnknown
	}
	return record
}

// decodeInto fills record from the raw buffer, failing on the first
// structural violation.
func (d *Decoder) decodeInto(record *domain.MigrationAccount, buf []byte) error {
	migrationID, next, err := readLenPrefixedString(buf, migrationIDLenOffset, migrationIDOffset)
	if err != nil {
		return fmt.Errorf("migration id: %w", err)
	}
	record.MigrationID = migrationID

	// The project name follows immediately: uint32 length, then bytes.
	projectName, next, err := readLenPrefixedString(buf, next, next+4)
	if err != nil {
		return fmt.Errorf("project name: %w", err)
	}
	record.ProjectName = projectName

	// After the name: a run of 32-byte pubkeys. The first is the
	// vault/authority and is skipped; then old mint, then new mint.
	mintsStart := next + pubkeySize
	if len(buf) < mintsStart+2*pubkeySize {
		return fmt.Errorf("buffer too short for mint run: %d bytes", len(buf))
	}

	oldMint := buf[mintsStart : mintsStart+pubkeySize]
	newMint := buf[mintsStart+pubkeySize : mintsStart+2*pubkeySize]
	if !onCurve(oldMint) || !onCurve(newMint) {
		return fmt.Errorf("mint bytes are not valid curve points")
	}
	record.OldTokenMint = encodeBase58(oldMint)
	record.NewTokenMint = encodeBase58(newMint)

	start, end := pickMigrationWindow(scanTimestampCandidates(buf))
	record.StartDate = start
	record.EndDate = end
	record.Status = domain.DeriveMigrationStatus(d.now(), start, end)

	return nil
}

// readLenPrefixedString reads a uint32 length at lenOffset and the string
// bytes at strOffset, returning the string and the offset just past it.
func readLenPrefixedString(buf []byte, lenOffset, strOffset int) (string, int, error) {
	if lenOffset < 0 || len(buf) < lenOffset+4 {
		return "", 0, fmt.Errorf("buffer too short for length at offset %d", lenOffset)
	}
	strLen := int(binary.LittleEndian.Uint32(buf[lenOffset:]))
	if strLen < 0 || strLen > len(buf) || strOffset+strLen > len(buf) {
		return "", 0, fmt.Errorf("string length %d out of range at offset %d", strLen, strOffset)
	}
	return string(buf[strOffset : strOffset+strLen]), strOffset + strLen, nil
}

// scanTimestampCandidates walks every byte offset, reads 8 bytes as a
// little-endian uint64, and keeps values that land inside the plausible
// date window. The scan can misread unrelated byte runs that happen to
// fall in the window; no stronger schema is derivable from the account.
// Result is deduplicated and sorted ascending.
func scanTimestampCandidates(buf []byte) []int64 {
	seen := make(map[int64]struct{})
	for off := 0; off+8 <= len(buf); off++ {
		v := binary.LittleEndian.Uint64(buf[off:])
		if v < uint64(timestampMin) || v >= uint64(timestampMax) {
			continue
		}
		seen[int64(v)] = struct{}{}
	}

	candidates := make([]int64, 0, len(seen))
	for v := range seen {
		candidates = append(candidates, v)
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	return candidates
}

// pickMigrationWindow maps timestamp candidates onto the migration window:
// two or more distinct candidates give (start, end); exactly one gives an
// end date only; none gives an open window.
func pickMigrationWindow(candidates []int64) (start, end *int64) {
	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return nil, &candidates[0]
	default:
		return &candidates[0], &candidates[1]
	}
}

// onCurve reports whether the 32 bytes form a valid ed25519 curve point.
// Mint addresses are regular keypair accounts, so off-curve bytes indicate
// the heuristic layout misfired for this account.
func onCurve(point []byte) bool {
	if len(point) != pubkeySize {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
