package main

import "github.com/eleven-am/lecture-transcriber/internal/bootstrap"

func main() {
	bootstrap.Run()
}
