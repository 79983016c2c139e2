// Package frame owns the framewire payload encoding rules.
//
// Ownership boundary:
// - start/end token wrapping and validation
// - fixed-width numeric text (length prefixes, int and float frames)
// - list and bool text forms
//
// Nothing here performs I/O. Moving the encoded bytes is the job of
// package chunk; composing both is the job of package channel.
package frame
