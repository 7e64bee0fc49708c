package main

import "github.com/DouaBoudokhan/MedTech-AIMinds/internal/cli"

func main() {
	cli.Execute()
}
