// Command daybook runs the Daybook server and its maintenance commands.
package main

func main() {
	Execute()
}
