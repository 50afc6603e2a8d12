package main

import "github.com/thereayou/watchparty/cmd/server"

func main() {
	server.NewServer().Run()
}
