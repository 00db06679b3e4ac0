package pawn

import "github.com/holiman/uint256"

const (
	// BasisPoints is the fee denominator.
	BasisPoints uint64 = 10_000
	// DefaultFeeBps is the fee applied to newly configured pools (0.30%).
	DefaultFeeBps uint64 = 30
)

var basisPoints = uint256.NewInt(BasisPoints)

// Fee returns principal*rateBps/10000, truncated. The intermediate product must
// fit in 64 bits; larger products report ErrMathOverflow.
func Fee(principal, rateBps uint64) (uint64, error) {
	product := new(uint256.Int).Mul(uint256.NewInt(principal), uint256.NewInt(rateBps))
	if !product.IsUint64() {
		return 0, ErrMathOverflow
	}
	return product.Div(product, basisPoints).Uint64(), nil
}

// RepaymentTotal returns the fee and principal+fee owed on repayment.
func RepaymentTotal(principal, rateBps uint64) (fee, total uint64, err error) {
	fee, err = Fee(principal, rateBps)
	if err != nil {
		return 0, 0, err
	}
	sum := new(uint256.Int).Add(uint256.NewInt(principal), uint256.NewInt(fee))
	if !sum.IsUint64() {
		return 0, 0, ErrMathOverflow
	}
	return fee, sum.Uint64(), nil
}
