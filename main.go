package main

import "github.com/ValentinKolb/dLayer/cmd"

func main() {
	cmd.Execute()
}
