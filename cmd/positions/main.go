// Command positions prints the open positions of the operator (or -account)
// for every configured instrument in both directions.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/mirrorperp/params"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/leverage"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/market"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/position"
	"github.com/uhyunpark/mirrorperp/pkg/chain"
	"github.com/uhyunpark/mirrorperp/pkg/crypto"
)

// usdDecimals is the venue's fixed-point precision for USD amounts.
const usdDecimals = 30

func main() {
	account := flag.String("account", "", "address to inspect (default: operator from PRIVATE_KEY)")
	envPath := flag.String("env", "", "path to .env file")
	flag.Parse()

	if err := run(*envPath, *account); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(envPath, accountHex string) error {
	cfg, err := params.LoadFromEnv(envPath)
	if err != nil {
		return err
	}

	var account common.Address
	if accountHex != "" {
		if !common.IsHexAddress(accountHex) {
			return fmt.Errorf("-account %q is not an address", accountHex)
		}
		account = common.HexToAddress(accountHex)
	} else {
		signer, err := crypto.FromPrivateKeyHex(cfg.Mirror.PrivateKey)
		if err != nil {
			return err
		}
		account = signer.Address()
	}

	instruments := make([]market.Instrument, 0, len(cfg.Mirror.Instruments))
	for _, ic := range cfg.Mirror.Instruments {
		instruments = append(instruments, market.Instrument{
			Symbol:     ic.Symbol,
			Address:    common.HexToAddress(ic.Address),
			TargetSize: ic.Size,
		})
	}
	registry, err := market.NewRegistryFrom(instruments)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return err
	}
	defer client.Close()

	query := position.NewReaderQuery(client, cfg.Venue.Reader, cfg.Venue.Vault, account, registry)

	fmt.Printf("Account: %s\n\n", account.Hex())
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tSIDE\tSIZE (USD)\tCOLLATERAL (USD)\tAVG PRICE\tLEVERAGE")
	open := 0
	for _, symbol := range registry.AllSymbols() {
		for _, isLong := range []bool{true, false} {
			records, err := query.GetPosition(ctx, symbol, isLong)
			if err != nil {
				return fmt.Errorf("%s: %w", symbol, err)
			}
			for _, r := range records {
				open++
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					symbol,
					side(isLong),
					leverage.FormatUnits(r.Size, usdDecimals),
					leverage.FormatUnits(r.Collateral, usdDecimals),
					leverage.FormatUnits(r.AveragePrice, usdDecimals),
					leverageOf(r))
			}
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if open == 0 {
		fmt.Println("\nNo open positions.")
	}
	return nil
}

func side(isLong bool) string {
	if isLong {
		return "long"
	}
	return "short"
}

func leverageOf(r position.Record) string {
	if r.Collateral == nil || r.Collateral.Sign() == 0 {
		return "-"
	}
	// Both sides are USD; a scale of 100 yields hundredths.
	lev, err := leverage.NewCalculator(big.NewInt(100)).Leverage(r.Size, r.Collateral)
	if err != nil {
		return "-"
	}
	return leverage.FormatLeverage(lev)
}
