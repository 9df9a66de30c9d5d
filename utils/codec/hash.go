package codec

// djb2 seed
const hashSeed uint32 = 5381

// Hash is DJB2 over the UTF-8 bytes of a key, NUL excluded:
// h = h*33 + b mod 2^32. Keys are identified by this 32-bit value alone;
// two keys hashing equal are the same entry and the later write wins.
func Hash(key []byte) uint32 {
	h := hashSeed
	for _, b := range key {
		h = h*33 + uint32(b)
	}
	return h
}

// HashString avoids a copy for string keys.
func HashString(key string) uint32 {
	h := hashSeed
	for i := 0; i < len(key); i++ {
		h = h*33 + uint32(key[i])
	}
	return h
}
