package main

import "github.com/MeKo-Tech/cropocr/cmd/cropocr/cmd"

func main() {
	cmd.Execute()
}
