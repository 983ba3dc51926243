// Command yogi is a minimal example binary wiring the config and branch
// packages together: it parses command-line flags, merges them with any
// config files given on the command line, validates and resolves the
// result through a Document, starts a Branch on it, and logs
// discovery/connection events until interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	libbr "github.com/yohummus/yogi-framework-sub001/branch"
	libcfg "github.com/yohummus/yogi-framework-sub001/config"
	liberr "github.com/yohummus/yogi-framework-sub001/errors"
	libdef "github.com/yohummus/yogi-framework-sub001/internal/defaults"
	libcode "github.com/yohummus/yogi-framework-sub001/internal/errs"
	liblog "github.com/yohummus/yogi-framework-sub001/logger"
	loglvl "github.com/yohummus/yogi-framework-sub001/logger/level"
	libreact "github.com/yohummus/yogi-framework-sub001/reactor"
	libreg "github.com/yohummus/yogi-framework-sub001/registry"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "yogi:", err)
		os.Exit(1)
	}
}

const flagBits = libcfg.Logging | libcfg.BranchAll | libcfg.Files | libcfg.Overrides | libcfg.Variables

func run(args []string) error {
	parsed, err := libcfg.Parse(flagBits, args)
	if err != nil {
		if cerr, ok := err.(liberr.Error); ok && cerr.IsCode(libcode.HelpRequested) {
			fmt.Println(err.Error())
			return nil
		}
		return err
	}

	doc := libcfg.NewDocument(false)
	if err := doc.MergeJSON(defaultBranchJSON); err != nil {
		return err
	}
	if err := libcfg.Apply(doc, flagBits, parsed); err != nil {
		return err
	}
	if err := doc.Validate("/branch", "branch_config"); err != nil {
		return err
	}

	cfg, err := branchConfigFromDocument(doc)
	if err != nil {
		return err
	}

	log := newLogger(parsed)

	reactor := libreact.New()
	registry := libreg.New()
	defer registry.DestroyAll()

	br, err := libbr.New(reactor, cfg, log)
	if err != nil {
		return err
	}
	registry.Register(br)

	sigs := libbr.NewSignalSet(reactor, libbr.SignalInt|libbr.SignalTerm)
	registry.Register(sigs)

	var logEvent func(ev libbr.Event)
	logEvent = func(ev libbr.Event) {
		if cerr, ok := ev.Err.(liberr.Error); ok && cerr.IsCode(libcode.Canceled) {
			return
		}
		log.Entry(loglvl.InfoLevel, "branch event").
			FieldAdd("type", ev.Type).
			FieldAdd("uuid", ev.UUID.String()).
			Log()
		_ = br.AwaitEventAsync(libbr.EventMaskAll, logEvent)
	}
	_ = br.AwaitEventAsync(libbr.EventMaskAll, logEvent)

	done := make(chan struct{})
	sigs.AwaitAsync(func(bit libbr.Signal, sigarg interface{}, err error) {
		reactor.Stop()
		close(done)
	})

	osSigs := make(chan os.Signal, 2)
	signal.Notify(osSigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-osSigs
		bit := libbr.SignalInt
		if sig == syscall.SIGTERM {
			bit = libbr.SignalTerm
		}
		libbr.RaiseSignal(bit, nil, nil)
	}()

	reactor.RunInBackground()
	<-done

	return nil
}

// defaultBranchJSON seeds the document with every field branch_config
// requires before CLI overrides land on top of it, so a bare "yogi" with
// no flags at all still produces a valid, connectable branch.
var defaultBranchJSON = []byte(`{"branch":{
	"name":"yogi",
	"network_name":"default",
	"advertising_address":"` + libdef.DefaultAdvAddressIPv4 + `",
	"advertising_port":` + fmt.Sprint(libdef.DefaultAdvPort) + `,
	"tx_queue_size":` + fmt.Sprint(libdef.DefaultTxQueueSize) + `,
	"rx_queue_size":` + fmt.Sprint(libdef.DefaultRxQueueSize) + `
}}`)

func branchConfigFromDocument(doc *libcfg.Document) (libbr.Config, error) {
	section, err := doc.GetJSON("/branch")
	if err != nil {
		return libbr.Config{}, err
	}
	b, _ := section.(map[string]interface{})

	name, _ := b["name"].(string)
	description, _ := b["description"].(string)
	networkName, _ := b["network_name"].(string)

	cfg := libbr.DefaultConfig(name, description, networkName)
	if password, ok := b["password"].(string); ok {
		cfg.Password = password
	}
	if path, ok := b["path"].(string); ok && path != "" {
		cfg.Info.Path = path
	}
	if ghost, ok := b["ghost_mode"].(bool); ok {
		cfg.GhostMode = ghost
	}
	if ifs, ok := b["advertising_interfaces"].([]interface{}); ok {
		for _, v := range ifs {
			if s, ok := v.(string); ok {
				cfg.AdvertisingInterfaces = append(cfg.AdvertisingInterfaces, s)
			}
		}
	}
	if addr, ok := b["advertising_address"].(string); ok && addr != "" {
		cfg.AdvertisingAddress = addr
	}
	if port, ok := asUint16(b["advertising_port"]); ok {
		cfg.AdvertisingPort = port
	}
	if timeout, ok := b["timeout"]; ok {
		if d, err := parseFlagDuration(fmt.Sprint(timeout)); err == nil {
			cfg.ConnectTimeout = d
		}
	}
	return cfg, nil
}

func asUint16(v interface{}) (uint16, bool) {
	switch n := v.(type) {
	case float64:
		return uint16(n), true
	case int:
		return uint16(n), true
	default:
		return 0, false
	}
}

func newLogger(parsed *libcfg.ParsedArgs) liblog.Logger {
	log := liblog.New(context.Background())
	if parsed.LogVerbosity != "" {
		log.SetLevel(loglvl.Parse(parsed.LogVerbosity))
	}
	return log
}

func parseFlagDuration(s string) (time.Duration, error) {
	if s == "-1" || s == "infinite" {
		return -1, nil
	}
	return time.ParseDuration(s)
}
