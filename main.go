package main

import "github.com/referralkit/commission-ledger/cmd"

func main() {
	cmd.Execute()
}
