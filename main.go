package main

import "github.com/vibast-solutions/ms-go-fps-payments/cmd"

func main() {
	cmd.Execute()
}
