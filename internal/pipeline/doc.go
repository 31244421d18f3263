// Package pipeline runs the analysis of a catalog as a sequence of steps.
//
// A catalog is processed by loading it, running the lensing detector on it
// and condensing the outcome into a summary. Each stage is a Step that
// receives the current model.AnalysisReport and fills in its part.
//
// Steps can be added or replaced without touching the executor, which
// gives every stage the same error handling, logging and cancellation.
//
// Several catalogs can be analysed concurrently with BatchProcessor, which
// bounds concurrency using errgroup.
package pipeline
