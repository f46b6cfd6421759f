package main

import "land-crawler/cmd"

func main() {
	cmd.Execute()
}
