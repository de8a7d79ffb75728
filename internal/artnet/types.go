package artnet

// Universe wraps the 512 byte array for convenience.
type Universe [512]byte

// NodeTopic describes the outputs of one node seen on the network.
type NodeTopic struct {
	Name      string
	OutputStr []string
	Output    []uint16
}

// IpsType is published to the nodes topic.
type IpsType struct {
	Ips    []string
	Topics []NodeTopic
}
