package main

import "github.com/davarch/star-backup/cmd/star-backup/cli"

func main() {
	cli.Execute()
}
