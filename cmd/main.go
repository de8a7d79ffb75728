package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"btdmx/internal/artnet"
	"btdmx/internal/ble"
	"btdmx/internal/broadcast"
	"btdmx/internal/clientmqtt"
	"btdmx/internal/codec"
	"btdmx/internal/command"
	"btdmx/internal/config"
	"btdmx/internal/dmx"
	"btdmx/internal/eventloop"
	"btdmx/internal/light"
	"btdmx/internal/logger"
	"btdmx/internal/receiver"
	"btdmx/internal/scheduler"
	"btdmx/internal/sender"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "config", "configs/conf.toml", "Path to configuration file")
}

// app holds the services shared by all modes.
type app struct {
	cfg    *config.Config
	log    *logger.Log
	key    codec.SystemKey
	loop   *eventloop.Loop
	client clientmqtt.MQTTClient
	art    *artnet.ArtNet

	wg      sync.WaitGroup
	closers []func()
}

func main() {
	flag.Parse()
	cfg, err := config.NewConfig(configFile)
	if err != nil {
		fmt.Printf("configuration file read error: %v", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Printf("failed to create a logger: %v", err)
		os.Exit(1)
	}

	log.With(logger.Fields{"module": "logger"}).Debug("newLogger created ok")

	key, err := codec.ParseSystemKey(cfg.System.Key)
	if err != nil {
		log.Errorf("invalid system key: %v", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	a := &app{
		cfg:  cfg,
		log:  log,
		key:  key,
		loop: eventloop.New(log, 0),
	}

	if err := a.start(ctx); err != nil {
		log.Errorf("failed to start %s mode: %v", cfg.System.Mode, err)
		cancel()
		a.shutdown()
		os.Exit(1)
	}
	log.Infof("running in %s mode", cfg.System.Mode)

	if err := a.loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Errorf("event loop: %v", err)
	}

	a.shutdown()
	log.Info("shutdown complete")
}

func (a *app) start(ctx context.Context) error {
	if a.cfg.MQTT.Enabled {
		a.client = clientmqtt.NewClient(a.log, ConvertConfigClientMQTT(a.cfg.MQTT))
		a.log.With(logger.Fields{"module": "mqtt"}).Debug("NewClient created ok")
	}
	needArtNet := a.cfg.ArtNet.Enabled || a.cfg.System.Mode == config.ModePassThrough ||
		(a.cfg.System.Mode == config.ModeReceiver && a.cfg.Receiver.LightType == "artnet")
	if needArtNet {
		if err := a.startArtNet(ctx); err != nil {
			return err
		}
	}

	switch a.cfg.System.Mode {
	case config.ModeSender:
		return a.startSender(ctx)
	case config.ModePassThrough:
		return a.startDMX(ctx, func(s dmx.Snapshot) { a.art.SetChannels(0, s.Channels()) })
	case config.ModeReceiver, config.ModeMonitor:
		return a.startReceiver(ctx)
	}
	return fmt.Errorf("unknown mode %q", a.cfg.System.Mode)
}

func (a *app) startArtNet(ctx context.Context) error {
	var pub artnet.Publisher
	if a.client != nil {
		pub = a.client
	}
	art, err := artnet.NewController(a.log, a.cfg.ArtNet.Network, a.cfg.ArtNet.Universe, pub, clientmqtt.TopicNodes)
	if err != nil {
		return fmt.Errorf("error while creating a new controller art-net: %w", err)
	}
	if err := art.Start(ctx); err != nil {
		return fmt.Errorf("failed to start art-net service: %w", err)
	}
	a.art = art
	a.closers = append(a.closers, art.Stop)
	return nil
}

// startMQTT connects the client, if enabled. onSet may be nil.
func (a *app) startMQTT(ctx context.Context, onSet clientmqtt.SetHandler) error {
	if a.client == nil {
		return nil
	}
	if err := a.client.Start(ctx, onSet); err != nil {
		return fmt.Errorf("failed to start MQTT service: %w", err)
	}
	a.closers = append(a.closers, func() {
		if err := a.client.Stop(); err != nil {
			a.log.Error("failed to stop MQTT service:", err.Error())
		}
	})
	return nil
}

// startDMX opens the UART and hands every frame to handler on the loop.
func (a *app) startDMX(ctx context.Context, handler func(dmx.Snapshot)) error {
	src, err := dmx.OpenSerial(a.log, a.cfg.DMX.Device, a.cfg.DMX.Baud)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() {
		if err := src.Close(); err != nil {
			a.log.Warnf("close DMX port: %v", err)
		}
	})
	return dmx.NewReceiver(a.log, a.loop, handler).Start(ctx, src)
}

func (a *app) startSender(ctx context.Context) error {
	sched, err := scheduler.New(a.log, a.cfg.System.LightChannels)
	if err != nil {
		return err
	}
	sched.SetInitialRepeatCount(a.cfg.Sender.InitialRepeatCount)
	sched.SetRefreshUniverse(a.cfg.Sender.RefreshUniverse)

	snd, err := sender.New(a.log, sched, sender.Options{
		Key:       a.key,
		Carrier:   sender.Carrier(a.cfg.Sender.Carrier),
		CompanyID: a.cfg.Sender.CompanyID,
	})
	if err != nil {
		return err
	}

	err = a.startMQTT(ctx, func(p clientmqtt.Payload) {
		if perr := a.loop.Post(ctx, func() {
			for _, c := range p {
				sched.SetChannel(int(c.Channel), c.Value)
			}
		}); perr != nil {
			a.log.Debugf("set dropped: %v", perr)
		}
	})
	if err != nil {
		return err
	}

	if a.cfg.DMX.Device != "" {
		if err := a.startDMX(ctx, func(s dmx.Snapshot) { sched.SetChannels(0, s.Channels()) }); err != nil {
			return err
		}
	}

	adv, err := ble.NewAdvertiser(a.log, a.cfg.BLE.Adapter, a.cfg.BLE.AdvertiseInterval.Duration)
	if err != nil {
		return err
	}
	tx := broadcast.NewTransmitter(a.log, a.loop, adv, snd, a.cfg.Sender.MaxAdvBytes, broadcast.Timing{
		IdleRetry:    a.cfg.Sender.IdleRetry.Duration,
		UpdateDelay:  a.cfg.Sender.UpdateDelay.Duration,
		ErrorBackoff: a.cfg.Sender.ErrorBackoff.Duration,
	})
	a.closers = append(a.closers, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := tx.Stop(stopCtx); err != nil {
			a.log.Warnf("stop advertising: %v", err)
		}
		if err := adv.Close(); err != nil {
			a.log.Warnf("close advertiser: %v", err)
		}
	})
	return tx.Start(ctx)
}

func (a *app) startReceiver(ctx context.Context) error {
	if err := a.startMQTT(ctx, nil); err != nil {
		return err
	}

	disp := receiver.NewDispatcher(a.log, a.key)
	disp.SetAddressing(a.cfg.Receiver.FirstLight)

	if a.cfg.System.Mode == config.ModeMonitor {
		disp.EnableMonitor(a.reportCommand)
	} else if err := a.addLights(disp); err != nil {
		return err
	}

	scanner, err := ble.NewScanner(a.log)
	if err != nil {
		return err
	}
	listener := broadcast.NewListener(a.log, a.loop, scanner, disp, a.cfg.Sender.ErrorBackoff.Duration)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := listener.Run(ctx); err != nil {
			a.log.Errorf("scanner stopped: %v", err)
		}
	}()
	return nil
}

func (a *app) addLights(disp *receiver.Dispatcher) error {
	width := a.cfg.System.LightChannels
	for i := 0; i < a.cfg.Receiver.Lights; i++ {
		global := a.cfg.Receiver.FirstLight + i
		switch a.cfg.Receiver.LightType {
		case "log":
			disp.AddLight(light.NewLogLight(a.log, global, width))
		case "mqtt":
			if a.client == nil {
				return errors.New("light-type mqtt needs [MQTT] enabled")
			}
			disp.AddLight(light.NewMQTTLight(a.log, a.client, global, width))
		case "artnet":
			disp.AddLight(light.NewArtNetLight(a.art, a.cfg.Receiver.ArtNetFirstChannel, i, width))
		default:
			return fmt.Errorf("unknown light-type %q", a.cfg.Receiver.LightType)
		}
	}
	return nil
}

// reportCommand runs on the loop for every command seen in monitor mode.
func (a *app) reportCommand(c command.Command) {
	if a.client == nil {
		return
	}
	report := clientmqtt.CommandReport{Light: c.Light, Command: c.String()}
	if err := a.client.Publish(clientmqtt.TopicMonitor, report); err != nil {
		a.log.Debugf("publish monitor: %v", err)
	}
}

// shutdown stops services in reverse start order.
func (a *app) shutdown() {
	a.wg.Wait()
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// ConvertConfigClientMQTT преобразует структуры.
func ConvertConfigClientMQTT(cfg config.MQTTConf) clientmqtt.MQTTConf {
	return clientmqtt.MQTTConf{
		ClientID:    cfg.ClientID,
		Schema:      "tcp",
		Host:        cfg.Host,
		Port:        cfg.Port,
		User:        cfg.User,
		Password:    cfg.Password,
		Qos:         cfg.Qos,
		TopicPrefix: cfg.TopicPrefix,
	}
}
