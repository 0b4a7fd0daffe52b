package main

import (
	cmd "github.com/quantshift/btc-perp-engine/cmd"
)

const version = "0.1.0"

func main() {
	cmd.SetVersion(version)
	cmd.Execute()
}
