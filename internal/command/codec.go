package command

// Append encodes cmd onto buf. Data beyond the kind's length is not written.
func Append(buf []byte, cmd Command) []byte {
	buf = append(buf, cmd.AddrByte())
	return append(buf, cmd.Data[:cmd.Kind.DataLen()]...)
}

// Encode serialises cmds back to back, without a count.
func Encode(cmds []Command) []byte {
	size := 0
	for _, c := range cmds {
		size += c.Size()
	}
	buf := make([]byte, 0, size)
	for _, c := range cmds {
		buf = Append(buf, c)
	}
	return buf
}

// Decode walks stream and calls fn for every complete command. Extended
// commands are consumed and skipped, whatever their sub-opcode. Decoding stops
// at the first command whose data bytes are cut off. Returns the number of
// bytes consumed.
func Decode(stream []byte, fn func(Command)) int {
	i := 0
	for i < len(stream) {
		addr := stream[i]
		if addr == ExtendedLeadIn {
			// skip the sub-opcode: ExtendedNop and unknown ones do nothing
			i += 2
			continue
		}
		kind := Kind(addr % 3)
		n := kind.DataLen()
		if len(stream)-(i+1) < n {
			return i
		}
		data := make([]byte, n)
		copy(data, stream[i+1:i+1+n])
		fn(Command{Light: uint16(addr / 3), Kind: kind, Data: data})
		i += 1 + n
	}
	if i > len(stream) {
		i = len(stream)
	}
	return i
}

// DecodeAll collects every decodable command of stream.
func DecodeAll(stream []byte) ([]Command, int) {
	var cmds []Command
	n := Decode(stream, func(c Command) {
		cmds = append(cmds, c)
	})
	return cmds, n
}
