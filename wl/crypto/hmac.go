package crypto

const hmacBlockSize = 64

// MAC computes HMAC-SHA256 of data under key.
//
// Keys longer than the 64-byte block size are hashed first; shorter keys are
// zero-padded. Two passes with the 0x36/0x5c inner and outer pads, per
// RFC 2104, built on the package's own Sum256.
func MAC(key, data []byte) [32]byte {
	if len(key) > hmacBlockSize {
		sum := Sum256(key)
		key = sum[:]
	}

	var ipad, opad [hmacBlockSize]byte
	copy(ipad[:], key)
	copy(opad[:], key)
	for i := 0; i < hmacBlockSize; i++ {
		ipad[i] ^= 0x36
		opad[i] ^= 0x5c
	}

	inner := Sum256(append(ipad[:], data...))
	return Sum256(append(opad[:], inner[:]...))
}
