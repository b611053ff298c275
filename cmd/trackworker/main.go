package main

import "github.com/gpxtojson/trackworker/cmd/trackworker/cmd"

func main() {
	cmd.Execute()
}
