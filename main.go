package main

import "github.com/hoppxi/nightdisplay/internal/cmd"

func main() {
	cmd.Execute()
}
