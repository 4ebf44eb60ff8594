package memory

import "fmt"

// FormatHex renders v as 0xNN.
func FormatHex(v uint64) string {
	return fmt.Sprintf("0x%02X", v)
}

// FormatHexDisplay renders v as "0xNN (n)".
func FormatHexDisplay(v uint64) string {
	return fmt.Sprintf("%s (%d)", FormatHex(v), v)
}

// FormatBinary renders the low byte of v as 0bNNNNNNNN.
func FormatBinary(v uint64) string {
	return fmt.Sprintf("0b%08b", v&0xFF)
}

// AddressRange renders the address span of size bytes at base+offset.
// Stack ranges are written from the high address down.
func AddressRange(base, offset, size uint32, stack bool) string {
	start := int64(base) + int64(offset)
	end := start + int64(size) - 1
	if stack {
		end = start - int64(size) + 1
	}
	if start == end {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d - %d", start, end)
}
