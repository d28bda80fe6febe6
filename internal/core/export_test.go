package core

// BuildWorkbook exposes the internal test helper to the external core_test package.
var BuildWorkbook = buildWorkbook
