package main

import "github.com/fieldops/ticketscan/cmd/ticketscan/cmd"

func main() {
	cmd.Execute()
}
