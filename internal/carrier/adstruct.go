package carrier

// FindADStruct scans length-prefixed AD structures in adv and returns the
// data (after the type byte) of the first one of adType. Malformed input
// ends the search.
func FindADStruct(adv []byte, adType byte) ([]byte, bool) {
	idx := 0
	for idx < len(adv) {
		ln := int(adv[idx])
		if ln < 1 || idx+1+ln > len(adv) {
			return nil, false
		}
		if adv[idx+1] == adType {
			return adv[idx+2 : idx+1+ln], true
		}
		idx += 1 + ln
	}
	return nil, false
}

// ADStruct wraps data into one AD structure of adType.
func ADStruct(adType byte, data []byte) []byte {
	ad := make([]byte, 0, 2+len(data))
	ad = append(ad, byte(len(data)+1), adType)
	return append(ad, data...)
}

// ManufacturerData is ADStruct for manufacturer specific data.
func ManufacturerData(mfg []byte) []byte {
	return ADStruct(ADTypeManufacturerData, mfg)
}

// SplitManufacturerData returns company ID and the bytes after it.
func SplitManufacturerData(mfg []byte) (uint16, []byte, bool) {
	if len(mfg) < 2 {
		return 0, nil, false
	}
	return uint16(mfg[0]) | uint16(mfg[1])<<8, mfg[2:], true
}
