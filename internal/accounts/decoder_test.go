package accounts

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"
	"time"

	"filippo.io/edwards25519"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zera-sync/internal/domain"
)

// fixedNow keeps status derivation deterministic.
var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func testDecoder() *Decoder {
	return NewDecoder().WithNow(func() time.Time { return fixedNow })
}

// validMints returns two distinct on-curve 32-byte public keys.
func validMints(t *testing.T) ([]byte, []byte) {
	t.Helper()
	g := edwards25519.NewGeneratorPoint()
	g2 := new(edwards25519.Point).Add(g, g)
	return g.Bytes(), g2.Bytes()
}

// buildAccount assembles a raw account buffer in the heuristic layout:
// 8 filler bytes, u32 id length, id, u32 name length, name, vault pubkey,
// old mint, new mint, then any extra bytes (timestamps).
func buildAccount(t *testing.T, migrationID, projectName string, oldMint, newMint []byte, extra []byte) string {
	t.Helper()

	var buf bytes.Buffer
	buf.Write(bytes.Repeat([]byte{0xFF}, 8)) // discriminator filler

	var lenBytes [4]byte
	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(migrationID)))
	buf.Write(lenBytes[:])
	buf.WriteString(migrationID)

	binary.LittleEndian.PutUint32(lenBytes[:], uint32(len(projectName)))
	buf.Write(lenBytes[:])
	buf.WriteString(projectName)

	buf.Write(bytes.Repeat([]byte{0xAA}, 32)) // vault/authority, skipped
	buf.Write(oldMint)
	buf.Write(newMint)
	buf.Write(extra)

	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// tsBytes renders a timestamp as the 8-byte little-endian run the scanner
// looks for.
func tsBytes(ts int64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(ts))
	return b[:]
}

func TestDecode_FullAccount(t *testing.T) {
	oldMint, newMint := validMints(t)

	start := fixedNow.Add(-10 * 24 * time.Hour).Unix()
	end := fixedNow.Add(10 * 24 * time.Hour).Unix()
	extra := append(tsBytes(start), tsBytes(end)...)
	extra = append(extra, tsBytes(start)...) // duplicate, must be deduped

	raw := buildAccount(t, "migration-7", "ZERA", oldMint, newMint, extra)

	record := testDecoder().Decode("AccPubkey", raw)

	require.Empty(t, record.DecodeErr)
	assert.Equal(t, "AccPubkey", record.Pubkey)
	assert.Equal(t, "migration-7", record.MigrationID)
	assert.Equal(t, "ZERA", record.ProjectName)
	assert.Equal(t, encodeBase58(oldMint), record.OldTokenMint)
	assert.Equal(t, encodeBase58(newMint), record.NewTokenMint)

	require.NotNil(t, record.StartDate)
	require.NotNil(t, record.EndDate)
	assert.Equal(t, start, *record.StartDate)
	assert.Equal(t, end, *record.EndDate)
	assert.Equal(t, domain.MigrationActive, record.Status)
}

func TestDecode_SingleTimestampIsEndDate(t *testing.T) {
	oldMint, newMint := validMints(t)

	end := fixedNow.Add(-5 * 24 * time.Hour).Unix()
	raw := buildAccount(t, "m", "P", oldMint, newMint, tsBytes(end))

	record := testDecoder().Decode("pk", raw)

	require.Empty(t, record.DecodeErr)
	assert.Nil(t, record.StartDate)
	require.NotNil(t, record.EndDate)
	assert.Equal(t, end, *record.EndDate)
	assert.Equal(t, domain.MigrationClaims, record.Status)
}

func TestDecode_NoTimestamps(t *testing.T) {
	oldMint, newMint := validMints(t)

	raw := buildAccount(t, "m", "P", oldMint, newMint, nil)

	record := testDecoder().Decode("pk", raw)

	require.Empty(t, record.DecodeErr)
	assert.Nil(t, record.StartDate)
	assert.Nil(t, record.EndDate)
	assert.Equal(t, domain.MigrationUnknown, record.Status)
}

func TestDecode_UpcomingMigration(t *testing.T) {
	oldMint, newMint := validMints(t)

	start := fixedNow.Add(5 * 24 * time.Hour).Unix()
	end := fixedNow.Add(15 * 24 * time.Hour).Unix()
	extra := append(tsBytes(start), tsBytes(end)...)

	raw := buildAccount(t, "m", "P", oldMint, newMint, extra)

	record := testDecoder().Decode("pk", raw)

	require.Empty(t, record.DecodeErr)
	assert.Equal(t, domain.MigrationUpcoming, record.Status)
}

func TestDecode_MalformedAccountYieldsPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid base64", "!!!not-base64!!!"},
		{"empty buffer", base64.StdEncoding.EncodeToString(nil)},
		{"truncated before mints", base64.StdEncoding.EncodeToString(append(
			bytes.Repeat([]byte{0xFF}, 8),
			0x02, 0x00, 0x00, 0x00, 'i', 'd',
			0x01, 0x00, 0x00, 0x00, 'P',
		))},
		{"absurd id length", base64.StdEncoding.EncodeToString(append(
			bytes.Repeat([]byte{0xFF}, 8),
			0xFF, 0xFF, 0xFF, 0x7F,
		))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := testDecoder().Decode("pk", tt.raw)

			assert.NotEmpty(t, record.DecodeErr)
			assert.Equal(t, "pk", record.Pubkey)
			assert.Equal(t, domain.MigrationUnknown, record.Status)
			assert.Empty(t, record.OldTokenMint)
		})
	}
}

func TestDecode_OffCurveMintRejected(t *testing.T) {
	oldMint, _ := validMints(t)
	// 0xFF.. is not a canonical point encoding.
	offCurve := bytes.Repeat([]byte{0xFF}, 32)

	raw := buildAccount(t, "m", "P", oldMint, offCurve, nil)

	record := testDecoder().Decode("pk", raw)
	assert.NotEmpty(t, record.DecodeErr)
	assert.Equal(t, domain.MigrationUnknown, record.Status)
}

func TestScanTimestampCandidates(t *testing.T) {
	in2024 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC).Unix()
	in2027 := time.Date(2027, 8, 1, 0, 0, 0, 0, time.UTC).Unix()
	in2019 := time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC).Unix()
	in2031 := time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC).Unix()

	var buf bytes.Buffer
	buf.Write(tsBytes(in2027))
	buf.Write(tsBytes(in2019)) // below window, ignored
	buf.Write(tsBytes(in2024))
	buf.Write(tsBytes(in2031)) // above window, ignored
	buf.Write(tsBytes(in2024)) // duplicate

	got := scanTimestampCandidates(buf.Bytes())
	assert.Equal(t, []int64{in2024, in2027}, got)
}

func TestScanTimestampCandidates_EmptyAndShort(t *testing.T) {
	assert.Empty(t, scanTimestampCandidates(nil))
	assert.Empty(t, scanTimestampCandidates([]byte{1, 2, 3}))
}

func TestPickMigrationWindow(t *testing.T) {
	start, end := pickMigrationWindow(nil)
	assert.Nil(t, start)
	assert.Nil(t, end)

	start, end = pickMigrationWindow([]int64{100})
	assert.Nil(t, start)
	require.NotNil(t, end)
	assert.Equal(t, int64(100), *end)

	start, end = pickMigrationWindow([]int64{100, 200, 300})
	require.NotNil(t, start)
	require.NotNil(t, end)
	assert.Equal(t, int64(100), *start)
	assert.Equal(t, int64(200), *end)
}
