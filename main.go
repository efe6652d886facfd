package main

import "AviCRM/Commands"

func main() {
	Commands.Execute()
}
