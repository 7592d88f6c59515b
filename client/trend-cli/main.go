package main

import "TrendWatch/client/trend-cli/cmd"

func main() {
	cmd.Execute()
}
