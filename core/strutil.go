package core

// Number formatting for console output. fmt is too large for the
// firmware image.

// appendUint appends the decimal digits of n.
func appendUint(dst []byte, n uint32) []byte {
	var tmp [10]byte
	i := len(tmp)
	for {
		i--
		tmp[i] = byte('0' + n%10)
		n /= 10
		if n == 0 {
			break
		}
	}
	return append(dst, tmp[i:]...)
}

func utoa(n uint32) string {
	var buf [10]byte
	return string(appendUint(buf[:0], n))
}

func itoa(n int) string {
	if n < 0 {
		return "-" + utoa(uint32(-n))
	}
	return utoa(uint32(n))
}

// boolDigit renders b the way status and help output do.
func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
