/*
unspecter (Entry Point)

This tool recovers the original source of Python programs protected by the
Specter obfuscator. The embedded bytecode is decompiled with pycdc and the
scrambled state table in the listing is decoded back into source text.
*/
package main

import (
	"github.com/whit3rabbit/unspecter/cmd/unspecter/cmd"
)

func main() {
	cmd.Execute()
}
