package marketplace

import (
	"github.com/holiman/uint256"
)

const basisPointsDenominator = 10_000

// Split divides price into the creator royalty and the seller proceeds.
// Royalty is price × percentage% computed in basis points and truncated,
// so proceeds absorb any rounding remainder.
func Split(price *uint256.Int, percentage uint8) (royalty, proceeds *uint256.Int) {
	bps := uint256.NewInt(uint64(percentage) * 100)
	// The 512-bit intermediate cannot overflow the result since bps never
	// exceeds the denominator.
	royalty, _ = new(uint256.Int).MulDivOverflow(price, bps, uint256.NewInt(basisPointsDenominator))
	proceeds = new(uint256.Int).Sub(price, royalty)
	return royalty, proceeds
}
