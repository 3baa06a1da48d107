package audio

// DecodeMuLaw expands G.711 μ-law bytes (RTP payload type 0) to PCM
func DecodeMuLaw(payload []byte) []int16 {
	out := make([]int16, len(payload))
	for i, b := range payload {
		out[i] = muLawTable[b]
	}
	return out
}

var muLawTable = func() [256]int16 {
	var t [256]int16
	for i := range t {
		u := ^byte(i)
		sign := u & 0x80
		exponent := (u >> 4) & 0x07
		mantissa := u & 0x0F
		magnitude := ((int16(mantissa) << 3) + 0x84) << exponent
		magnitude -= 0x84
		if sign != 0 {
			t[i] = -magnitude
		} else {
			t[i] = magnitude
		}
	}
	return t
}()
