package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// Режимы работы устройства.
const (
	ModeSender      = "sender"      // DMX -> BLE.
	ModeReceiver    = "receiver"    // BLE -> светильники.
	ModeMonitor     = "monitor"     // BLE -> журнал/MQTT, без светильников.
	ModePassThrough = "passthrough" // DMX -> Art-Net.
)

// Config структура конфигурации.
type Config struct {
	Logger   LogConf      // Logger - конфигурация регистратора.
	System   SystemConf   // System - общие параметры протокола.
	Sender   SenderConf   // Sender - параметры передатчика.
	Receiver ReceiverConf // Receiver - параметры приемника.
	DMX      DMXConf      // DMX - параметры входа DMX512.
	BLE      BLEConf      // BLE - параметры радио.
	MQTT     MQTTConf     // MQTT - конфигурация MQTT клиента.
	ArtNet   ArtNetConf   // ArtNet - конфигурация выхода Art-Net.
}

// LogConf структура конфигурации.
type LogConf struct {
	Level string `toml:"log-level"` // Level - уровень логирования.
}

// SystemConf структура конфигурации.
type SystemConf struct {
	Mode          string `toml:"mode"`           // Mode - режим работы.
	Key           string `toml:"key"`            // Key - системный ключ (пусто = ключ по умолчанию, >=64 символов = hex).
	LightChannels int    `toml:"light-channels"` // LightChannels - число каналов на светильник.
}

// SenderConf структура конфигурации.
type SenderConf struct {
	Carrier            string   `toml:"carrier"`              // Carrier - native или ibeacon.
	CompanyID          uint16   `toml:"company-id"`           // CompanyID - идентификатор производителя для native.
	InitialRepeatCount int      `toml:"initial-repeat-count"` // InitialRepeatCount - число быстрых повторов изменения.
	RefreshUniverse    bool     `toml:"refresh-universe"`     // RefreshUniverse - периодически обновлять всю вселенную.
	MaxAdvBytes        int      `toml:"max-adv-bytes"`        // MaxAdvBytes - размер рекламного пакета.
	IdleRetry          Duration `toml:"idle-retry"`           // IdleRetry - пауза, если нечего отправлять.
	UpdateDelay        Duration `toml:"update-delay"`         // UpdateDelay - пауза после успешного старта рекламы.
	ErrorBackoff       Duration `toml:"error-backoff"`        // ErrorBackoff - пауза после ошибки старта рекламы.
}

// ReceiverConf структура конфигурации.
type ReceiverConf struct {
	FirstLight         int    `toml:"first-light"`          // FirstLight - номер первого светильника этого приемника.
	Lights             int    `toml:"lights"`               // Lights - число светильников.
	LightType          string `toml:"light-type"`           // LightType - log, mqtt или artnet.
	ArtNetFirstChannel int    `toml:"artnet-first-channel"` // ArtNetFirstChannel - первый канал в Art-Net вселенной.
}

// DMXConf структура конфигурации.
type DMXConf struct {
	Device string `toml:"device"` // Device - путь к UART.
	Baud   int    `toml:"baud"`   // Baud - скорость порта.
}

// BLEConf структура конфигурации.
type BLEConf struct {
	Adapter           string   `toml:"adapter"`            // Adapter - имя адаптера BlueZ.
	AdvertiseInterval Duration `toml:"advertise-interval"` // AdvertiseInterval - интервал рекламы.
}

// MQTTConf структура конфигурации.
type MQTTConf struct {
	Enabled  bool   `toml:"enabled"`  // Enabled - включить MQTT.
	ClientID string `toml:"clientID"` // ClientID - имя клиента.
	// TODO Schema   string `toml:"schema"`   // Schema - тип подключения.
	Host        string `toml:"server"`       // Host - адрес MQTT сервера.
	Port        string `toml:"port"`         // Port - порт MQTT сервера.
	User        string `toml:"user"`         // User - логин для подключения к MQTT серверу.
	Password    string `toml:"password"`     // Password - пароль для подключения к MQTT серверу.
	Qos         byte   `toml:"qos"`          // Qos - качество обслуживания.
	TopicPrefix string `toml:"topic-prefix"` // TopicPrefix - префикс топиков.
}

// ArtNetConf структура конфигурации.
type ArtNetConf struct {
	Enabled  bool   `toml:"enabled"`  // Enabled - включить Art-Net.
	Network  string `toml:"network"`  // Network - CIDR сети Art-Net.
	Universe uint16 `toml:"universe"` // Universe: старший байт - SubUni, младший байт - Net.
}

// Duration - time.Duration, читаемый из строки вида "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	return Config{
		Logger: LogConf{Level: "info"},
		System: SystemConf{
			Mode:          ModeReceiver,
			LightChannels: 8,
		},
		Sender: SenderConf{
			Carrier:            "native",
			CompanyID:          0x048F,
			InitialRepeatCount: 3,
			RefreshUniverse:    true,
			MaxAdvBytes:        31,
			IdleRetry:          Duration{100 * time.Millisecond},
			UpdateDelay:        Duration{5 * time.Millisecond},
			ErrorBackoff:       Duration{5 * time.Second},
		},
		Receiver: ReceiverConf{
			Lights:    2,
			LightType: "log",
		},
		DMX: DMXConf{
			Device: "",
			Baud:   250000,
		},
		BLE: BLEConf{
			Adapter:           "hci0",
			AdvertiseInterval: Duration{20 * time.Millisecond},
		},
		MQTT: MQTTConf{
			ClientID:    "btdmx",
			Port:        "1883",
			TopicPrefix: "btdmx",
		},
		ArtNet: ArtNetConf{
			Network: "192.168.6.0/24",
		},
	}
}

// NewConfig конструктор.
func NewConfig(path string) (*Config, error) {
	// default values
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &cfg, err
	}
	if err := cfg.validate(); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.System.Mode {
	case ModeSender, ModeReceiver, ModeMonitor, ModePassThrough:
	default:
		return fmt.Errorf("unknown mode %q", c.System.Mode)
	}
	if c.System.LightChannels < 3 || c.System.LightChannels > 32 {
		return fmt.Errorf("light-channels must be in 3..32, got %d", c.System.LightChannels)
	}
	switch c.Sender.Carrier {
	case "native", "ibeacon":
	default:
		return fmt.Errorf("unknown carrier %q", c.Sender.Carrier)
	}
	if c.Sender.MaxAdvBytes < 8 || c.Sender.MaxAdvBytes > 31 {
		return fmt.Errorf("max-adv-bytes must be in 8..31, got %d", c.Sender.MaxAdvBytes)
	}
	if c.System.Mode == ModePassThrough && c.DMX.Device == "" {
		return fmt.Errorf("mode %q needs a DMX device", ModePassThrough)
	}
	switch c.Receiver.LightType {
	case "log", "mqtt", "artnet":
	default:
		return fmt.Errorf("unknown light-type %q", c.Receiver.LightType)
	}
	return nil
}
