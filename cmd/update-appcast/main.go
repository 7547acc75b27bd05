// Command update-appcast prepends the current plugin release to appcast.json.
package main

import "github.com/ukenn2112/mojibobplugin/cmd/update-appcast/cmd"

func main() {
	cmd.Execute()
}
