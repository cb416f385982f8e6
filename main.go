// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package main

import "github.com/go-core-stack/mcp-auth-gateway/cmd"

func main() {
	cmd.Execute()
}
