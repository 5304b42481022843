package main

import (
	"dataguard/cmd"
)

func main() {
	cmd.Execute()
}
