package enum

import "strings"

// Vendor identifies a broker backend.
type Vendor uint8

const (
	_vendor_beg Vendor = iota
	VendorSimulator
	VendorKiwoom
	_vendor_end
)

func (v Vendor) IsAvailable() bool {
	return v > _vendor_beg && v < _vendor_end
}

func (v Vendor) String() string {
	switch v {
	case VendorSimulator:
		return "simulator"
	case VendorKiwoom:
		return "kiwoom"
	default:
		return "unknown"
	}
}

// ParseVendor normalizes a vendor name into a Vendor value.
func ParseVendor(s string) Vendor {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "simulator", "sim", "paper":
		return VendorSimulator
	case "kiwoom", "rest":
		return VendorKiwoom
	default:
		return _vendor_beg
	}
}
