// The main package for the moses-scraper executable.
package main

import "github.com/JakeFAU/moses-scraper/cmd"

func main() {
	cmd.Execute()
}
