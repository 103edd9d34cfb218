package main

import "github.com/smallbiznis/coopledger/internal/cli"

func main() {
	cli.Execute()
}
