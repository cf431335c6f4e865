// Command drugq is the command-line front end of the dosewise engine.
package main

func main() {
	Execute()
}
