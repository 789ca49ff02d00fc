package main

import "github.com/okarpov/serverkeeper/cmd/serverkeeper/cmd"

func main() {
	cmd.Execute()
}
