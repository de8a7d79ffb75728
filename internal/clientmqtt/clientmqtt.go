package clientmqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"btdmx/internal/logger"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ChannelCount - число каналов вселенной DMX.
const ChannelCount = 512

// ClientMQTT структура клиента MQTT.
type ClientMQTT struct {
	ctx       context.Context
	log       *logger.Log
	cfgClient MQTTConf
	client    mqtt.Client
	opts      *mqtt.ClientOptions
	onSet     SetHandler
}

// MQTTClient is a convenience interface to use within this application.
type MQTTClient interface {
	Start(ctx context.Context, onSet SetHandler) error
	Stop() error
	Publish(topic string, v interface{}) error
}

// NewClient конструктор.
func NewClient(log logger.Logger, cfgClient MQTTConf) *ClientMQTT {
	if cfgClient.Schema == "" {
		cfgClient.Schema = "tcp"
	}
	return &ClientMQTT{
		log:       log.With(logger.Fields{"module": "mqtt"}),
		cfgClient: cfgClient,
	}
}

// Start connects to the broker. onSet, if not nil, receives values published
// to <prefix>/set.
func (c *ClientMQTT) Start(ctx context.Context, onSet SetHandler) error {
	if c.log.IsDebug() {
		mqtt.ERROR = log.New(os.Stdout, "[ERROR] ", 0)
		mqtt.CRITICAL = log.New(os.Stdout, "[CRIT] ", 0)
		mqtt.WARN = log.New(os.Stdout, "[WARN]  ", 0)
	}

	c.ctx = ctx
	c.onSet = onSet

	c.opts = mqtt.NewClientOptions().
		AddBroker(fmt.Sprintf("%s://%s:%s", c.cfgClient.Schema, c.cfgClient.Host, c.cfgClient.Port)).
		SetUsername(c.cfgClient.User).
		SetPassword(c.cfgClient.Password).
		SetDefaultPublishHandler(c.messageHandler).
		SetOnConnectHandler(c.connectHandler).
		SetConnectionLostHandler(c.connectLostHandler).
		SetClientID(c.cfgClient.ClientID).
		SetOrderMatters(false).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second)

	c.client = mqtt.NewClient(c.opts)

	token := c.client.Connect()
	select {
	case <-token.Done():
		if token.Error() != nil {
			return token.Error()
		}
	case <-c.ctx.Done():
		return errors.New("context canceled")
	}

	c.log.Infof("Status: %v", c.client.IsConnected())
	return nil
}

func (c *ClientMQTT) Stop() error {
	if c.client != nil && c.client.IsConnected() {
		c.client.Disconnect(500)
	}
	return nil
}

// Topic returns the full name of a topic below the prefix.
func (c *ClientMQTT) Topic(name string) string {
	prefix := strings.TrimSuffix(c.cfgClient.TopicPrefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

func (c *ClientMQTT) connectHandler(_ mqtt.Client) {
	c.log.Info("client connected to server")
	// the session is clean, subscribe again after every reconnect
	if c.onSet != nil {
		c.sub(c.Topic(TopicSet))
	}
}

func (c *ClientMQTT) connectLostHandler(_ mqtt.Client, err error) {
	c.log.Errorf("server connect lost: %v", err)
}

func (c *ClientMQTT) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	c.log.Debugf("received message: %s from topic: %s", msg.Payload(), msg.Topic())
	if msg.Topic() != c.Topic(TopicSet) || c.onSet == nil {
		return
	}
	data, err := ParsePayload(msg.Payload())
	if err != nil {
		c.log.Errorf("message could not be parsed (%s): %v", msg.Payload(), err)
		return
	}
	c.log.Debugf("message payload parsed. Result: %v", data)
	c.onSet(data)
}

// ParsePayload decodes a JSON list of channel values. Channels beyond the
// universe are rejected.
func ParsePayload(b []byte) (Payload, error) {
	var data Payload
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, err
	}
	for _, cmd := range data {
		if int(cmd.Channel) >= ChannelCount {
			return nil, fmt.Errorf("channel %d out of range 0..%d", cmd.Channel, ChannelCount-1)
		}
	}
	return data, nil
}

func (c *ClientMQTT) sub(topic string) {
	token := c.client.Subscribe(topic, c.cfgClient.Qos, nil)
	go func() {
		select {
		case <-c.ctx.Done():
			return
		case <-token.Done():
			if token.Error() != nil {
				c.log.Errorf("topic %s subscription error. %v", topic, token.Error())
				return
			}
		}
		c.log.Debugf("topic %s subscribed", topic)
	}()
}

// Publish sends v as JSON to the topic below the prefix. Delivery errors are
// only logged.
func (c *ClientMQTT) Publish(topic string, v interface{}) error {
	msg, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("public topic. msg: %w", err)
	}
	if c.client == nil || !c.client.IsConnected() {
		return errors.New("not connected")
	}
	full := c.Topic(topic)
	token := c.client.Publish(full, c.cfgClient.Qos, false, msg)
	go func() {
		select {
		case <-c.ctx.Done():
		case <-token.Done():
			if token.Error() != nil {
				c.log.Errorf("error publish topic %s. %v", full, token.Error())
			}
		}
	}()
	return nil
}
