// Command profiletree builds and checks the element trees of FHIR StructureDefinitions.
package main

import "os"

func main() {
	os.Exit(execute())
}
