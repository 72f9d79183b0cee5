package accounts

// base58Alphabet is the Bitcoin/Solana alphabet: digits and letters
// excluding the visually ambiguous 0, O, I, l.
const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// encodeBase58 encodes buf by treating it as a big unsigned integer and
// repeatedly dividing by 58, then prepending one '1' per leading zero byte.
func encodeBase58(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}

	leadingZeros := 0
	for _, b := range buf {
		if b != 0 {
			break
		}
		leadingZeros++
	}

	// Remainders come out least-significant first; reversed on output.
	digits := make([]byte, 0, len(buf)*2)
	num := make([]byte, len(buf))
	copy(num, buf)

	start := leadingZeros
	for start < len(num) {
		// Long division of num by 58, consuming leading zeros as they appear.
		remainder := 0
		for i := start; i < len(num); i++ {
			acc := remainder*256 + int(num[i])
			num[i] = byte(acc / 58)
			remainder = acc % 58
		}
		digits = append(digits, base58Alphabet[remainder])
		for start < len(num) && num[start] == 0 {
			start++
		}
	}

	out := make([]byte, 0, leadingZeros+len(digits))
	for i := 0; i < leadingZeros; i++ {
		out = append(out, '1')
	}
	for i := len(digits) - 1; i >= 0; i-- {
		out = append(out, digits[i])
	}
	return string(out)
}
