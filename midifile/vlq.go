package midifile

// MaxVLQ is the largest value a four byte variable-length quantity can hold
const MaxVLQ = 0x0FFFFFFF

// AppendVLQ appends v in MIDI variable-length form, most significant group first.
// Values above MaxVLQ are not representable; callers check with ValidVLQ.
func AppendVLQ(dst []byte, v uint32) []byte {
	v &= MaxVLQ
	var buf [4]byte
	i := len(buf) - 1
	buf[i] = byte(v & 0x7F)
	for v >>= 7; v > 0; v >>= 7 {
		i--
		buf[i] = byte(v&0x7F) | 0x80
	}
	return append(dst, buf[i:]...)
}

func EncodeVLQ(v uint32) []byte {
	return AppendVLQ(nil, v)
}

func ValidVLQ(v int64) bool {
	return v >= 0 && v <= MaxVLQ
}

// DecodeVLQ reads one quantity from the front of b and reports how many bytes it used
func DecodeVLQ(b []byte) (uint32, int, error) {
	var v uint32
	for i := 0; i < 4; i++ {
		if i >= len(b) {
			return 0, 0, malformed(ErrTruncated, "variable-length quantity cut short")
		}
		v = v<<7 | uint32(b[i]&0x7F)
		if b[i] < 0x80 {
			return v, i + 1, nil
		}
	}
	return 0, 0, malformed(ErrTrack, "variable-length quantity longer than 4 bytes")
}
