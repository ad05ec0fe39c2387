// Command syncordia bootstraps a Syncordia peer network from an edit
// trace, replays it to convergence, and (optionally) keeps the network
// up behind an inspection RPC endpoint until terminated.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/masanar/syncordia/auditlog"
	"github.com/masanar/syncordia/config"
	"github.com/masanar/syncordia/crypto/certgen"
	"github.com/masanar/syncordia/events"
	"github.com/masanar/syncordia/rpc"
	"github.com/masanar/syncordia/supervisor"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	tracePath := flag.String("trace", "", "path to the edit trace to replay (required unless -gencerts)")
	genCerts := flag.String("gencerts", "", "generate CA + peer TLS certs into the given directory and exit")
	quiesceTimeout := flag.Duration("quiesce-timeout", 5*time.Second, "max time to wait for in-flight broadcasts to drain after replay")
	serve := flag.Bool("serve", false, "keep the RPC inspection endpoint up after replay until SIGINT/SIGTERM")
	flag.Parse()

	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if *genCerts != "" {
		peerName := fmt.Sprintf("peer-%d", cfg.PeerID)
		if err := certgen.GenerateAll(*genCerts, peerName, nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s for %q\n", *genCerts, peerName)
		return
	}

	if *tracePath == "" {
		log.Fatal("missing -trace")
	}
	trace, err := supervisor.LoadTrace(*tracePath)
	if err != nil {
		log.Fatalf("trace: %v", err)
	}

	emitter := events.NewEmitter()
	logEvent := func(e events.Event) {
		log.Printf("[event] peer=%d type=%s data=%v", e.PeerID, e.Type, e.Data)
	}
	for _, typ := range []events.EventType{
		events.LineInserted, events.LineTombstoned, events.LineStashed,
		events.LineDiscardedForged, events.LineDiscardedDupe,
		events.PeerStarted, events.PeerStopped,
		events.CapacityExhausted, events.UnknownMessageIgnored,
	} {
		emitter.Subscribe(typ, logEvent)
	}

	var audit *auditlog.Log
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			log.Fatalf("mkdir data dir: %v", err)
		}
		audit, err = auditlog.Open(cfg.DataDir + "/audit")
		if err != nil {
			log.Fatalf("open audit log: %v", err)
		}
	}

	sup, err := supervisor.Bootstrap(trace, cfg.Network, emitter, audit)
	if err != nil {
		log.Fatalf("bootstrap: %v", err)
	}
	log.Printf("Bootstrapped %d peers from trace %s", len(sup.Handles()), *tracePath)

	var rpcServer *rpc.Server
	if cfg.RPCAddr != "" {
		handler := rpc.NewHandler(sup.Handles())
		rpcServer = rpc.NewServer(cfg.RPCAddr, handler, cfg.RPCAuthToken)
		if err := rpcServer.Start(); err != nil {
			log.Fatalf("rpc start: %v", err)
		}
		log.Printf("RPC listening on %s", cfg.RPCAddr)
	}

	if err := sup.Replay(trace); err != nil {
		log.Fatalf("replay: %v", err)
	}
	if err := sup.Quiesce(*quiesceTimeout); err != nil {
		log.Printf("quiescence: %v", err)
	}

	reportConvergence(sup)

	if *serve && rpcServer != nil {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
	}

	if rpcServer != nil {
		if err := rpcServer.Stop(); err != nil {
			log.Printf("rpc stop: %v", err)
		}
	}
	sup.Teardown()
	log.Println("Shutdown complete.")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults.", path)
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// reportConvergence logs whether every peer's alive content agrees after
// the trace has fully propagated; it is diagnostic output only, not part
// of the core's contract.
func reportConvergence(sup *supervisor.Supervisor) {
	snaps := sup.Snapshots()
	var want string
	first := true
	converged := true
	for id, snap := range snaps {
		if first {
			want = snap.AliveContent
			first = false
		} else if snap.AliveContent != want {
			converged = false
		}
		log.Printf("[peer %d] content=%q pending_stash=%d", id, snap.AliveContent, snap.PendingStash)
	}
	if converged {
		log.Println("Converged: all peers agree.")
	} else {
		log.Println("WARNING: peers have not converged.")
	}
}
