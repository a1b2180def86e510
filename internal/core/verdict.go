package core

// Verdict is the per-file outcome of a review. It is a tagged result rather
// than an "Error:"-prefixed string so that legitimate review text can never be
// mistaken for a failure.
type Verdict struct {
	// Path of the reviewed file within the repository.
	Path string
	// Body holds the review text on success, or a short failure description
	// when Err is set.
	Body string
	// Err marks the verdict for the report's error section instead of the
	// main body.
	Err bool
}

// OK returns a successful verdict for the given file.
func OK(path, body string) Verdict {
	return Verdict{Path: path, Body: body}
}

// Failed returns an error-tagged verdict for the given file.
func Failed(path, reason string) Verdict {
	return Verdict{Path: path, Body: reason, Err: true}
}
