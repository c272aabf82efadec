// vciderctl is the command-line interface for the vCider network
// management API.
package main

import "github.com/vcider/go-vcider/cmd/vciderctl/cmd"

func main() {
	cmd.Execute()
}
