// Package carrier recognises and builds the two BLE manufacturer-data carriers
// of a p44BTDMX payload:
//
//	native:  companyLo companyHi 0x44 payload...
//	iBeacon: 0x4C 0x00 0x02 length payload...
//
// The iBeacon form lets a phone, which can only send iBeacons, act as a sender.
package carrier

// Well known values.
const (
	CompanyApple       uint16 = 0x004C
	CompanyPlan44      uint16 = 0x4444
	CompanyBluekitchen uint16 = 0x048F

	SubtypeNative  byte = 0x44
	SubtypeIBeacon byte = 0x02

	// ADTypeManufacturerData is the AD type of manufacturer specific data.
	ADTypeManufacturerData byte = 0xFF

	// MaxAdvDataLen is the legacy advertising data limit.
	MaxAdvDataLen = 31

	// NativeOverhead is the AD header size around a native payload:
	// length, AD type, company ID, subtype.
	NativeOverhead = 5
	// IBeaconOverhead adds the iBeacon length byte.
	IBeaconOverhead = 6
)

// IsNativeCompany reports whether id is accepted as a native carrier.
func IsNativeCompany(id uint16) bool {
	return id == CompanyPlan44 || id == CompanyBluekitchen
}

// Unwrap extracts the obfuscated payload from manufacturer specific data
// (company ID first, little endian). ok is false for anything that is not
// one of our carriers.
func Unwrap(mfg []byte) (payload []byte, native bool, ok bool) {
	if len(mfg) < 4 {
		return nil, false, false
	}
	company := uint16(mfg[0]) | uint16(mfg[1])<<8
	switch {
	case IsNativeCompany(company) && mfg[2] == SubtypeNative:
		return mfg[3:], true, true
	case company == CompanyApple && mfg[2] == SubtypeIBeacon:
		n := int(mfg[3])
		rest := mfg[4:]
		if n > len(rest) {
			n = len(rest)
		}
		return rest[:n], false, true
	}
	return nil, false, false
}

// WrapNative builds native manufacturer data for company.
func WrapNative(payload []byte, company uint16) []byte {
	mfg := make([]byte, 0, 3+len(payload))
	mfg = append(mfg, byte(company), byte(company>>8), SubtypeNative)
	return append(mfg, payload...)
}

// WrapIBeacon builds manufacturer data disguised as an Apple iBeacon.
func WrapIBeacon(payload []byte) []byte {
	mfg := make([]byte, 0, 4+len(payload))
	mfg = append(mfg, byte(CompanyApple), byte(CompanyApple>>8), SubtypeIBeacon, byte(len(payload)))
	return append(mfg, payload...)
}
