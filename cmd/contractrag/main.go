// Package main provides the entry point for the contractrag CLI.
//
// contractrag ingests contracts, extracts clauses and red flags, and answers
// questions about them with page citations.
//
// Usage:
//
//	contractrag analyze msa.pdf
//	contractrag ask "What is the notice period?" --source msa.pdf
//
// See --help for all available options.
package main

func main() {
	Execute()
}
