package main

import "github.com/MeKo-Tech/terrasine/internal/cmd"

func main() {
	cmd.Execute()
}
