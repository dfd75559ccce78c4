package main

import "beacon/cli"

func main() {
	cli.Execute()
}
