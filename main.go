package main

import "github.com/ValentinKolb/pxKV/cmd"

func main() {
	cmd.Execute()
}
