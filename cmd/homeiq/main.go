// Package main provides the entry point for the homeiq CLI.
package main

import (
	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/cli"
)

func main() {
	cli.Execute()
}
