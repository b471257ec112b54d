package ubl

// SchemaValidator checks a payload against an external schema or
// schematron. Validation is deployment-specific (the XSD sets are large
// and profile-dependent); DecodeWith runs the validator before mapping
type SchemaValidator interface {
	Validate(data []byte) error
}

// NoopValidator accepts everything
type NoopValidator struct{}

// Validate implements SchemaValidator
func (NoopValidator) Validate([]byte) error { return nil }
