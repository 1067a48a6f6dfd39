// Command btcintel analyzes stored BTC candles: levels, Fibonacci structure,
// scored signals with TP/SL, and backtests of the stored signals.
package main

import (
	"os"

	"btc-intel/internal/cli"
)

func main() {
	os.Exit(cli.Main(os.Args[1:]))
}
