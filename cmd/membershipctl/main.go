// Command membershipctl is the operator tool for inspecting memberships and
// filing complaints on behalf of users.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
