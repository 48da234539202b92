package main

import "github.com/mark3labs/paymentsheet-go/internal/cli"

func main() {
	cli.Execute()
}
