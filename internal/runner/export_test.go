package runner

// ParseResultsTSV exposes the results-file parser to the external test
// package.
var ParseResultsTSV = parseResultsTSV
