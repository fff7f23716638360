package hash

import (
	"hash"
	"hash/crc32"
)

// Castagnoli table, computed once. Source file headers and snapshot
// manifests both embed checksums from this polynomial.
var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

// CRC32C computes the CRC32-Castagnoli checksum of data in one shot.
// Hardware accelerated where available (SSE4.2, ARM CRC).
func CRC32C(data []byte) uint32 {
	return crc32.Checksum(data, crc32cTable)
}

// NewCRC32C returns a streaming CRC32-Castagnoli hash.Hash32, used when
// checksumming snapshot transfers that never hold the whole payload in
// memory.
func NewCRC32C() hash.Hash32 {
	return crc32.New(crc32cTable)
}
