// Package main provides the entry point for the lensfind CLI.
//
// lensfind searches catalogs of point sources for the signatures of strong
// gravitational lensing: Einstein Cross style quadruple images and
// arc-shaped arrangements around a bright central object.
//
// Usage:
//
//	lensfind scan <catalog.csv>
//	lensfind simulate --pattern cross --out field.csv
//
// See --help for all available options.
package main

func main() {
	Execute()
}
