package main

import "github.com/CraigKelly/tvtrend/cmd"

// TODO: write the full trace (every draw, not just posterior means) with --trace
//       so chains can be inspected after a run

func main() {
	cmd.Execute()
}
