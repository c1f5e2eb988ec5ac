/*
	Copyright 2023 Markus Papenbrock
*/

package main

import "github.com/mpapenbr/racestrategy/cmd"

func main() {
	cmd.Execute()
}
