package main

import (
	"github.com/omarkhan/dreamforge/cli"
	"github.com/omarkhan/dreamforge/logger"
)

func main() {
	logger.InitLogger()
	cli.Execute()
}
