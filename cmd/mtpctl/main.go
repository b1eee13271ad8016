package main

import "github.com/mapthepast/mapthepast/internal/cli"

func main() {
	cli.Execute()
}
