package artnet

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"btdmx/internal/logger"
	"github.com/Haba1234/go-artnet"
)

// NodesInterval - период публикации списка узлов.
const NodesInterval = 30 * time.Second

// Publisher sends a value as JSON below the configured topic prefix.
type Publisher interface {
	Publish(topic string, v interface{}) error
}

// ArtNet is transport for the ArtNet protocol (DMX over UDP/IP). It sends one
// universe, the lights or the DMX input write into it.
type ArtNet struct {
	logger      *logger.Log
	pub         Publisher
	nodesTopic  string
	sender      *artnet.Controller
	address     artnet.Address
	state       Universe
	sendTrigger chan Universe
	ctx         context.Context
}

// NewController returns an art-net Controller sending to universe. pub may be
// nil, then the node list is only logged.
func NewController(log logger.Logger, network string, universe uint16, pub Publisher, nodesTopic string) (*ArtNet, error) {
	ip, err := FindArtNetIP(network)
	if err != nil {
		return nil, fmt.Errorf("failed to find the art-net IP: %w", err)
	}

	if len(ip) == 0 {
		return nil, errors.New("failed to find the art-net IP: No interface found")
	}

	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve hostname: %w", err)
	}

	host = strings.ToLower(strings.Split(host, ".")[0])
	l := log.With(logger.Fields{"module": "art-net"})
	l.Infof("Using ArtNet IP %s and hostname %s", ip.String(), host)

	level := "info"
	if l.IsDebug() {
		level = "debug"
	}

	control := &ArtNet{
		logger:      l,
		pub:         pub,
		nodesTopic:  nodesTopic,
		sender:      artnet.NewController(host, ip, artnet.NewDefaultLogger(level), artnet.MaxFPS(40)),
		address:     universeToAddress(universe),
		sendTrigger: make(chan Universe, 1),
	}

	return control, nil
}

// Start the ArtNet.
func (c *ArtNet) Start(ctx context.Context) error {
	if err := c.sender.Start(); err != nil {
		return fmt.Errorf("failed to start Controller: %w", err)
	}

	c.ctx = ctx
	go c.sendBackground()
	go c.debugDevices()
	return nil
}

// Stop the ArtNet.
func (c *ArtNet) Stop() {
	c.sender.Stop()
}

// SetChannels writes data starting at channel from (0 based) and queues the
// universe for sending. Called from the event loop only.
func (c *ArtNet) SetChannels(from int, data []byte) {
	if from < 0 || from >= len(c.state) {
		return
	}
	copy(c.state[from:], data)
	c.triggerSend()
}

// triggerSend replaces a universe still waiting to be sent.
func (c *ArtNet) triggerSend() {
	select {
	case <-c.sendTrigger:
	default:
	}
	c.sendTrigger <- c.state
}

func (c *ArtNet) sendBackground() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case dmx := <-c.sendTrigger:
			c.logger.Debugf("DMX. Отправка в контроллер по адресу %s", c.address.String())
			c.sender.SendDMXToAddress(dmx, c.address)
		}
	}
}

// universeToAddress converts a dmx universe to art-net address
// universe: старший байт - SubUni, младший байт - Net.
func universeToAddress(universe uint16) artnet.Address {
	v := make([]uint8, 2)
	binary.BigEndian.PutUint16(v, universe)

	return artnet.Address{
		Net:    v[0],
		SubUni: v[1],
	}
}

// NodeToString returns a string representation of the given Node.
func NodeToString(n *artnet.ControlledNode) (string, NodeTopic) {
	var inputs, outputs []string
	var out []uint16
	var outStr []string
	for _, p := range n.Node.InputPorts {
		inputs = append(inputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
	}

	for _, p := range n.Node.OutputPorts {
		outputs = append(outputs, fmt.Sprintf("%s: %s", p.Address.String(), p.Type.String()))
		out = append(out, uint16(p.Address.Integer()))
		outStr = append(outStr, p.Address.String())
	}

	return fmt.Sprintf(
			"IP=%s name=%q type=%q manufacturer=%q desc=%q inputs=%q outputs=%q",
			n.UDPAddress.String(), n.Node.Name, n.Node.Type,
			n.Node.Manufacturer, n.Node.Description,
			strings.Join(inputs, "; "), strings.Join(outputs, "; "),
		), NodeTopic{
			Name:      n.Node.Name,
			OutputStr: outStr,
			Output:    out,
		}
}

func ips(nodes []*artnet.ControlledNode) (ips IpsType) {
	ips = IpsType{}
	for _, n := range nodes {
		node, out := NodeToString(n)
		ips.Ips = append(ips.Ips, node)
		ips.Topics = append(ips.Topics, out)
	}
	return ips
}

// debugDevices logs and publishes the visible nodes.
func (c *ArtNet) debugDevices() {
	t := time.NewTicker(NodesInterval)
	defer t.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-t.C:
		}
		dev := ips(c.sender.Nodes)
		c.logger.Debugf("Currently %d devices are registered: %v", len(dev.Ips), dev.Ips)
		if c.pub == nil {
			continue
		}
		if err := c.pub.Publish(c.nodesTopic, dev); err != nil {
			c.logger.Debugf("publish nodes: %v", err)
		}
	}
}
