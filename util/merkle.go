package util

import (
	"github.com/bsv-blockchain/go-bt/v2/chainhash"
	"golang.org/x/crypto/blake2b"
)

const (
	merkleLeafPrefix = 0x00
	merkleNodePrefix = 0x01
)

// MerkleSentinel is the hash paired with the last node of an odd level and the
// root of an empty tree.
var MerkleSentinel chainhash.Hash = blake2b.Sum256(nil)

func MerkleLeaf(data []byte) chainhash.Hash {
	buf := make([]byte, 0, 1+len(data))
	buf = append(buf, merkleLeafPrefix)
	buf = append(buf, data...)

	return blake2b.Sum256(buf)
}

func MerkleNode(left, right chainhash.Hash) chainhash.Hash {
	var buf [65]byte

	buf[0] = merkleNodePrefix
	copy(buf[1:33], left[:])
	copy(buf[33:65], right[:])

	return blake2b.Sum256(buf[:])
}

// MerkleRoot computes the BLAKE2b merkle root over the given leaves.
func MerkleRoot(leaves []chainhash.Hash) chainhash.Hash {
	if len(leaves) == 0 {
		return MerkleSentinel
	}

	nodes := make([]chainhash.Hash, len(leaves))
	for i, leaf := range leaves {
		nodes[i] = MerkleLeaf(leaf[:])
	}

	for len(nodes) > 1 {
		next := make([]chainhash.Hash, 0, (len(nodes)+1)/2)

		for i := 0; i < len(nodes); i += 2 {
			right := MerkleSentinel
			if i+1 < len(nodes) {
				right = nodes[i+1]
			}

			next = append(next, MerkleNode(nodes[i], right))
		}

		nodes = next
	}

	return nodes[0]
}
