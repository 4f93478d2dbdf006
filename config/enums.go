package config

//go:generate go tool go-enum --marshal --mustparse --names --nocase

// Specification of what happens to documents which were converted with errors.
// ENUM(raise, report)
type FallbackMode int

// Specification of default page orientation.
// ENUM(portrait, landscape)
type PageOrientation int

// Landscape reports whether pages are wider than tall.
func (x PageOrientation) Landscape() bool {
	return x == PageOrientationLandscape
}
