package main

import "github.com/directoryhub/directory-services/cmd"

func main() {
	cmd.Execute()
}
