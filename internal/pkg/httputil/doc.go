// Package httputil centralizes JSON response writing and request decoding
// so every endpoint shares one envelope shape and one error format.
// Handlers call these helpers rather than touching http.ResponseWriter
// directly.
package httputil
