// Package pipeline hands the results of a crawl to a sequence of steps.
//
// Every page and every crawl error pulled from the collector becomes an
// Item and passes through the steps in order: aggregation, storage and
// report output.
//
//	collector.All ──▶ Item ──▶ SummaryStep ──▶ StoreStep ──▶ ReportStep
//
// Design decision: We use a pipeline pattern instead of direct function calls
// because:
//  1. It allows easy addition/removal of sinks without modifying the crawl loop
//  2. It provides consistent error handling and logging across sinks
package pipeline
