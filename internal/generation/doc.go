// Package generation defines the boundary between the application core and
// the external design-generation model.
package generation
