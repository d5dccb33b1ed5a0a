package main

import "github.com/goplus/unibuild/cmd/unibuild/internal"

func main() {
	internal.Execute()
}
