package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// PositionRouterJSON covers the market-order entry points and the request
// events emitted when a trader queues a position change.
const PositionRouterJSON = `[
  {"anonymous":false,"type":"event","name":"CreateIncreasePosition","inputs":[
    {"indexed":true,"name":"account","type":"address"},
    {"indexed":false,"name":"path","type":"address[]"},
    {"indexed":false,"name":"indexToken","type":"address"},
    {"indexed":false,"name":"amountIn","type":"uint256"},
    {"indexed":false,"name":"minOut","type":"uint256"},
    {"indexed":false,"name":"sizeDelta","type":"uint256"},
    {"indexed":false,"name":"isLong","type":"bool"},
    {"indexed":false,"name":"acceptablePrice","type":"uint256"},
    {"indexed":false,"name":"executionFee","type":"uint256"},
    {"indexed":false,"name":"index","type":"uint256"},
    {"indexed":false,"name":"queueIndex","type":"uint256"},
    {"indexed":false,"name":"blockNumber","type":"uint256"},
    {"indexed":false,"name":"blockTime","type":"uint256"},
    {"indexed":false,"name":"gasPrice","type":"uint256"}]},
  {"anonymous":false,"type":"event","name":"CreateDecreasePosition","inputs":[
    {"indexed":true,"name":"account","type":"address"},
    {"indexed":false,"name":"path","type":"address[]"},
    {"indexed":false,"name":"indexToken","type":"address"},
    {"indexed":false,"name":"collateralDelta","type":"uint256"},
    {"indexed":false,"name":"sizeDelta","type":"uint256"},
    {"indexed":false,"name":"isLong","type":"bool"},
    {"indexed":false,"name":"receiver","type":"address"},
    {"indexed":false,"name":"acceptablePrice","type":"uint256"},
    {"indexed":false,"name":"minOut","type":"uint256"},
    {"indexed":false,"name":"executionFee","type":"uint256"},
    {"indexed":false,"name":"index","type":"uint256"},
    {"indexed":false,"name":"queueIndex","type":"uint256"},
    {"indexed":false,"name":"blockNumber","type":"uint256"},
    {"indexed":false,"name":"blockTime","type":"uint256"}]},
  {"type":"function","name":"createIncreasePosition","stateMutability":"payable","inputs":[
    {"name":"_params","type":"tuple","components":[
      {"name":"path","type":"address[]"},
      {"name":"indexToken","type":"address"},
      {"name":"sizeDelta","type":"uint256"},
      {"name":"isLong","type":"bool"},
      {"name":"acceptablePrice","type":"uint256"},
      {"name":"minOut","type":"uint256"},
      {"name":"executionFee","type":"uint256"},
      {"name":"referralCode","type":"bytes32"},
      {"name":"callbackTarget","type":"address"},
      {"name":"priceData","type":"bytes[]"}]},
    {"name":"_amountIn","type":"uint256"}],
   "outputs":[{"name":"","type":"bytes32"}]},
  {"type":"function","name":"createDecreasePosition","stateMutability":"payable","inputs":[
    {"name":"_params","type":"tuple","components":[
      {"name":"path","type":"address[]"},
      {"name":"indexToken","type":"address"},
      {"name":"collateralDelta","type":"uint256"},
      {"name":"sizeDelta","type":"uint256"},
      {"name":"isLong","type":"bool"},
      {"name":"receiver","type":"address"},
      {"name":"acceptablePrice","type":"uint256"},
      {"name":"minOut","type":"uint256"},
      {"name":"executionFee","type":"uint256"},
      {"name":"withdrawETH","type":"bool"},
      {"name":"callbackTarget","type":"address"},
      {"name":"priceData","type":"bytes[]"}]}],
   "outputs":[{"name":"","type":"bytes32"}]}
]`

// OrderBookJSON covers the resting trigger-order entry points and events.
const OrderBookJSON = `[
  {"anonymous":false,"type":"event","name":"CreateIncreaseOrder","inputs":[
    {"indexed":true,"name":"account","type":"address"},
    {"indexed":false,"name":"orderIndex","type":"uint256"},
    {"indexed":false,"name":"purchaseToken","type":"address"},
    {"indexed":false,"name":"purchaseTokenAmount","type":"uint256"},
    {"indexed":false,"name":"collateralToken","type":"address"},
    {"indexed":false,"name":"indexToken","type":"address"},
    {"indexed":false,"name":"sizeDelta","type":"uint256"},
    {"indexed":false,"name":"isLong","type":"bool"},
    {"indexed":false,"name":"triggerPrice","type":"uint256"},
    {"indexed":false,"name":"triggerAboveThreshold","type":"bool"},
    {"indexed":false,"name":"executionFee","type":"uint256"}]},
  {"anonymous":false,"type":"event","name":"CreateDecreaseOrder","inputs":[
    {"indexed":true,"name":"account","type":"address"},
    {"indexed":false,"name":"orderIndex","type":"uint256"},
    {"indexed":false,"name":"collateralToken","type":"address"},
    {"indexed":false,"name":"collateralDelta","type":"uint256"},
    {"indexed":false,"name":"indexToken","type":"address"},
    {"indexed":false,"name":"sizeDelta","type":"uint256"},
    {"indexed":false,"name":"isLong","type":"bool"},
    {"indexed":false,"name":"triggerPrice","type":"uint256"},
    {"indexed":false,"name":"triggerAboveThreshold","type":"bool"},
    {"indexed":false,"name":"executionFee","type":"uint256"}]},
  {"type":"function","name":"createIncreaseOrder","stateMutability":"payable","inputs":[
    {"name":"_path","type":"address[]"},
    {"name":"_amountIn","type":"uint256"},
    {"name":"_indexToken","type":"address"},
    {"name":"_minOut","type":"uint256"},
    {"name":"_sizeDelta","type":"uint256"},
    {"name":"_collateralToken","type":"address"},
    {"name":"_isLong","type":"bool"},
    {"name":"_triggerPrice","type":"uint256"},
    {"name":"_triggerAboveThreshold","type":"bool"},
    {"name":"_executionFee","type":"uint256"},
    {"name":"_shouldWrap","type":"bool"}],
   "outputs":[]},
  {"type":"function","name":"createDecreaseOrder","stateMutability":"payable","inputs":[
    {"name":"_indexToken","type":"address"},
    {"name":"_sizeDelta","type":"uint256"},
    {"name":"_collateralToken","type":"address"},
    {"name":"_collateralDelta","type":"uint256"},
    {"name":"_isLong","type":"bool"},
    {"name":"_triggerPrice","type":"uint256"},
    {"name":"_triggerAboveThreshold","type":"bool"}],
   "outputs":[]}
]`

// ReaderJSON exposes the position reader used for close flows.
const ReaderJSON = `[
  {"type":"function","name":"getPositions","stateMutability":"view","inputs":[
    {"name":"_vault","type":"address"},
    {"name":"_account","type":"address"},
    {"name":"_collateralTokens","type":"address[]"},
    {"name":"_indexTokens","type":"address[]"},
    {"name":"_isLong","type":"bool[]"}],
   "outputs":[{"name":"","type":"uint256[]"}]}
]`

// ERC20JSON is the subset needed to size and gate instruments at startup.
const ERC20JSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

var (
	PositionRouterABI = mustParse(PositionRouterJSON)
	OrderBookABI      = mustParse(OrderBookJSON)
	ReaderABI         = mustParse(ReaderJSON)
	ERC20ABI          = mustParse(ERC20JSON)
)

func mustParse(js string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(js))
	if err != nil {
		panic("chain: bad embedded abi: " + err.Error())
	}
	return parsed
}
