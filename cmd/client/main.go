package main

import "dharana-gateway/internal/client/cmd"

func main() {
	cmd.Execute()
}
