package errors

// Error codes grouped per component.
const (
	// Manifest fetch & variant selection (100-199)
	ErrManifestRequest  = 100
	ErrManifestStatus   = 101
	ErrManifestRead     = 102
	ErrNoVariant        = 110
	ErrBadManifestURL   = 111
	ErrBadReferenceURI  = 112

	// Key & segment fetch (200-299)
	ErrFetchRequest   = 200
	ErrFetchStatus    = 201
	ErrFetchWrite     = 202
	ErrFetchExhausted = 203
	ErrFetchPartial   = 210
	ErrKeyFetch       = 211

	// Remux (300-399)
	ErrRemuxStart    = 300
	ErrRemuxExit     = 301
	ErrRemuxNoOutput = 302

	// Orchestration & system (400-499)
	ErrWorkDir    = 400
	ErrWriteLocal = 401
	ErrBadOptions = 402
)
