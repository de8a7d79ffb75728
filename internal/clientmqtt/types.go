package clientmqtt

type MQTTConf struct {
	ClientID    string // ClientID - уникальное имя клиента для брокеров.
	Schema      string // Schema - тип подключения.
	Host        string // Host - адрес MQTT сервера.
	Port        string // Port - порт MQTT сервера.
	User        string // User - логин для подключения к MQTT серверу.
	Password    string // Password - пароль для подключения к MQTT серверу.
	Qos         byte   // Qos - качество обслуживания.
	TopicPrefix string // TopicPrefix - префикс всех топиков.
}

// Топики относительно префикса.
const (
	TopicSet     = "set"          // входящие значения каналов.
	TopicMonitor = "monitor"      // команды, принятые в режиме монитора.
	TopicNodes   = "artnet/nodes" // видимые узлы Art-Net.
)

type DMXCommand struct {
	Channel uint16 // Channel is the channel a command can talk to (0-511).
	Value   uint8  // Value is the value a DMX channel can represent (0-255).
}

type Payload []DMXCommand

// SetHandler receives the channel values of a set message. It runs on the
// MQTT client goroutine.
type SetHandler func(Payload)

// CommandReport is published for every command seen in monitor mode.
type CommandReport struct {
	Light   uint16 // Light - глобальный номер светильника.
	Command string // Command - команда в текстовом виде.
}
