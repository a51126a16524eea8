package main

import "mover-report/internal/cli"

func main() {
	cli.Execute()
}
