// Package extractors provides the stock text extractors and their
// registration. Each format lives in its own subpackage implementing
// driven.TextExtractor; this package only knows how to wire them up.
package extractors
