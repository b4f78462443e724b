package main

import "github.com/dbsmedya/goexport/cmd/goexport/cmd"

func main() {
	cmd.Execute()
}
