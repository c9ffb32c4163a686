package main

import "github.com/veto-sh/veto/internal/cli"

func main() {
	cli.Execute()
}
