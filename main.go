package main

import "github.com/passkey-vault/wallet/cmd"

func main() {
	cmd.Execute()
}
