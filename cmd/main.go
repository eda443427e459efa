// cmd/main.go is the application entry point.
package main

import "github.com/hanse-dev/eventbocker/internal/cli"

func main() {
	cli.Execute()
}
