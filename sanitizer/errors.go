package sanitizer

import "errors"

var (
	// ErrInputTooLarge is returned when the input exceeds the policy's MaxInputLength.
	ErrInputTooLarge = errors.New("sanitizer: input too large")
	// ErrUnsupportedEmbed is returned when a URL does not belong to a known embed provider.
	ErrUnsupportedEmbed = errors.New("sanitizer: unsupported embed url")
	// ErrEmbedNotAllowed is returned when a resolved embed source fails the policy's origin list.
	ErrEmbedNotAllowed = errors.New("sanitizer: embed origin not allowed")
)
