package main

import (
	"github.com/vetrina/vetrina/internal/cli"
)

func main() {
	cli.Execute()
}
