package lazy

import "errors"

// ErrMatchEvaluation reports an internal inconsistency while answering an
// expression: a panic during matching or, with self-check enabled, a lazy
// answer that differs from the full-document answer.
var ErrMatchEvaluation = errors.New("match evaluation failed")
