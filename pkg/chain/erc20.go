package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// TokenBalance returns account's balance of token in base units.
func TokenBalance(ctx context.Context, c Caller, token, account common.Address) (*big.Int, error) {
	out, err := Call(ctx, c, ERC20ABI, token, "balanceOf", account)
	if err != nil {
		return nil, err
	}
	bal, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf: unexpected result %T", out[0])
	}
	return bal, nil
}

// TokenDecimals returns token's decimals.
func TokenDecimals(ctx context.Context, c Caller, token common.Address) (uint8, error) {
	out, err := Call(ctx, c, ERC20ABI, token, "decimals")
	if err != nil {
		return 0, err
	}
	dec, ok := out[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("decimals: unexpected result %T", out[0])
	}
	return dec, nil
}
