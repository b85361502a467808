package enums

import "strings"

// ConversionOperator converts a primary quantity into the secondary unit of measure.
type ConversionOperator string

const (
	ConversionMultiply ConversionOperator = "*"
	ConversionDivide   ConversionOperator = "/"
)

// IsValid reports whether the operator is one the enrichment step can apply.
func (o ConversionOperator) IsValid() bool {
	return o == ConversionMultiply || o == ConversionDivide
}

// NormalizeConversionOperator trims raw reference data; unknown symbols stay invalid.
func NormalizeConversionOperator(value string) ConversionOperator {
	return ConversionOperator(strings.TrimSpace(value))
}
