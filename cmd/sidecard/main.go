// Command sidecard supervises the helper processes described in a manifest.
package main

import "github.com/netmount/sidecar/internal/cli"

func main() {
	cli.Execute()
}
