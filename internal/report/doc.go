// Package report renders analysis reports.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: Markdown with tables and a pattern chart for sharing
//
// Report data structures live in package model; writers only format them.
// Writers implement the Writer interface, so they can be used
// interchangeably and combined with MultiWriter.
package report
