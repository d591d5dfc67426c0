// Package widget models the destination support widget's global API and
// the consumer that delivers a transferred conversation into it.
package widget

// Widget is the destination widget surface. Implementations bridge to
// whatever host actually renders the widget; every call is best-effort
// from the consumer's point of view.
type Widget interface {
	// Available reports whether the widget script has initialized far
	// enough to accept calls. It may flip to true at any time.
	Available() bool

	Open()
	SetComposer(text string) error
	SetConversationFields(fields map[string]any) error
	SetConversationTags(tags []string) error

	// OnReady registers fn to run once the widget signals readiness.
	// Implementations may call fn immediately if already ready.
	OnReady(fn func())
}
