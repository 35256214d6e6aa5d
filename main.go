// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/invowk/bufstage/cmd/bufstage"

func main() {
	cmd.Execute()
}
