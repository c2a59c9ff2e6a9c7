package main

import "github.com/audiolibrelab/snapcapture/cmd"

func main() {
	cmd.Execute()
}
