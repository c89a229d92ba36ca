// ABOUTME: Version constants for the noisebox binaries
// ABOUTME: Reported in status responses and mDNS advertisements
package version

const (
	Product      = "Noisebox"
	Manufacturer = "Noisebox Project"
	Version      = "0.1.0"
)
