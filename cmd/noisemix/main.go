package main

import "github.com/MeKo-Tech/noisemix/internal/cmd"

func main() {
	cmd.Execute()
}
