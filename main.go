package main

import "random-photo-backend/cmd"

func main() {
	cmd.Run()
}
