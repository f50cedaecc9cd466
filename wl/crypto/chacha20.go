package crypto

import "encoding/binary"

// "expand 32-byte k"
var chachaConstants = [4]uint32{0x61707865, 0x3320646e, 0x79622d32, 0x6b206574}

const (
	// KeySize is the ChaCha20 key length.
	KeySize = 32
	// NonceSize is the ChaCha20 nonce length actually used by the cipher.
	NonceSize = 12

	chachaBlockSize = 64
)

func quarterRound(a, b, c, d uint32) (uint32, uint32, uint32, uint32) {
	a += b
	d ^= a
	d = d<<16 | d>>16
	c += d
	b ^= c
	b = b<<12 | b>>20
	a += b
	d ^= a
	d = d<<8 | d>>24
	c += d
	b ^= c
	b = b<<7 | b>>25
	return a, b, c, d
}

// chachaBlock writes one 64-byte keystream block for the given counter.
func chachaBlock(key, nonce []byte, counter uint32, out *[chachaBlockSize]byte) {
	var state [16]uint32
	copy(state[:4], chachaConstants[:])
	for i := 0; i < 8; i++ {
		state[4+i] = binary.LittleEndian.Uint32(key[i*4:])
	}
	state[12] = counter
	for i := 0; i < 3; i++ {
		state[13+i] = binary.LittleEndian.Uint32(nonce[i*4:])
	}

	ws := state
	for i := 0; i < 10; i++ {
		// Column rounds.
		ws[0], ws[4], ws[8], ws[12] = quarterRound(ws[0], ws[4], ws[8], ws[12])
		ws[1], ws[5], ws[9], ws[13] = quarterRound(ws[1], ws[5], ws[9], ws[13])
		ws[2], ws[6], ws[10], ws[14] = quarterRound(ws[2], ws[6], ws[10], ws[14])
		ws[3], ws[7], ws[11], ws[15] = quarterRound(ws[3], ws[7], ws[11], ws[15])
		// Diagonal rounds.
		ws[0], ws[5], ws[10], ws[15] = quarterRound(ws[0], ws[5], ws[10], ws[15])
		ws[1], ws[6], ws[11], ws[12] = quarterRound(ws[1], ws[6], ws[11], ws[12])
		ws[2], ws[7], ws[8], ws[13] = quarterRound(ws[2], ws[7], ws[8], ws[13])
		ws[3], ws[4], ws[9], ws[14] = quarterRound(ws[3], ws[4], ws[9], ws[14])
	}

	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], ws[i]+state[i])
	}
}

// StreamXOR XORs data with the ChaCha20 keystream for key and nonce, with the
// block counter starting at 0. The operation is symmetric: applying it twice
// with the same key and nonce yields the original input.
//
// key must be 32 bytes and nonce 12 bytes; StreamXOR panics otherwise, since
// both always come from fixed-size internal material.
func StreamXOR(key, nonce, data []byte) []byte {
	if len(key) != KeySize {
		panic("crypto: bad ChaCha20 key length")
	}
	if len(nonce) != NonceSize {
		panic("crypto: bad ChaCha20 nonce length")
	}

	out := make([]byte, len(data))
	var block [chachaBlockSize]byte
	counter := uint32(0)
	for i := 0; i < len(data); i += chachaBlockSize {
		chachaBlock(key, nonce, counter, &block)
		n := len(data) - i
		if n > chachaBlockSize {
			n = chachaBlockSize
		}
		for j := 0; j < n; j++ {
			out[i+j] = data[i+j] ^ block[j]
		}
		counter++
	}
	return out
}
