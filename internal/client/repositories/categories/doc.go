// Package categories caches the remote category list locally so products
// can be labelled and filtered by category name while offline. A pull
// replaces the whole set with ReplaceAll.
package categories
