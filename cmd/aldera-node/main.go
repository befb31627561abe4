// Command aldera-node starts an Aldera consensus node.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/aldera-network/aldera/config"
	"github.com/aldera-network/aldera/consensus"
	"github.com/aldera-network/aldera/core"
	"github.com/aldera-network/aldera/crypto/certgen"
	"github.com/aldera-network/aldera/events"
	"github.com/aldera-network/aldera/network"
	"github.com/aldera-network/aldera/rpc"
	"github.com/aldera-network/aldera/storage"
	"github.com/aldera-network/aldera/wallet"
)

func main() {
	cfgPath := flag.String("config", "config.json", "path to config file")
	keyPath := flag.String("key", "validator.key", "path to keystore file")
	genKey := flag.Bool("genkey", false, "generate a new validator key and exit")
	genCerts := flag.String("gencerts", "", "generate CA + node TLS certs into the given directory and exit (requires node ID from config)")
	flag.Parse()

	// Read keystore password from environment (not CLI flags — they leak via ps).
	password := os.Getenv("ALDERA_PASSWORD")
	if password == "" {
		log.Println("WARNING: ALDERA_PASSWORD not set — keystore will use an empty password")
	}

	// ---- generate key mode ----
	if *genKey {
		w, err := wallet.Generate()
		if err != nil {
			log.Fatal(err)
		}
		if err := wallet.SaveKey(*keyPath, password, w.PrivKey()); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Generated key. Validator address: %s\n", w.Address())
		fmt.Printf("Saved to: %s\n", *keyPath)
		return
	}

	// ---- generate certs mode ----
	if *genCerts != "" {
		cfgForCerts, err := loadConfig(*cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		if err := certgen.GenerateAll(*genCerts, cfgForCerts.NodeID, nil); err != nil {
			log.Fatalf("gencerts: %v", err)
		}
		fmt.Printf("Certificates generated in %s for node %q\n", *genCerts, cfgForCerts.NodeID)
		return
	}

	// ---- load config ----
	cfg, err := loadConfig(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ---- load validator key ----
	privKey, err := wallet.LoadKey(*keyPath, password)
	if err != nil {
		log.Fatalf("load key: %v", err)
	}
	selfAddress := privKey.Public().Address()

	// ---- open DB ----
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		log.Fatalf("mkdir data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.DataDir + "/chain")
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	store := storage.NewLevelStore(db)

	// ---- initialise blockchain ----
	bc := core.NewBlockchain(store)
	if err := bc.Init(); err != nil {
		log.Fatalf("blockchain init: %v", err)
	}
	log.Printf("Chain at height %d, tip %s", bc.Height(), bc.Tip().Hash)

	// ---- validator set ----
	validatorData, err := store.GetValidatorState()
	if err != nil {
		log.Fatalf("load validator state: %v", err)
	}
	validators, err := core.LoadValidatorSet(validatorData)
	if err != nil {
		log.Fatalf("decode validator state: %v", err)
	}
	validators.Register(selfAddress, cfg.SelfStake)
	if err := persistValidators(store, validators); err != nil {
		log.Fatalf("persist validator state: %v", err)
	}

	// ---- events ----
	emitter := events.NewEmitter()
	emitter.Subscribe(events.EventValidatorRegistered, func(ev events.Event) {
		log.Printf("[event] validator registered: %v", ev.Data)
	})
	emitter.Subscribe(events.EventBlockCommitted, func(ev events.Event) {
		log.Printf("[event] block committed at height %d: %v", ev.BlockHeight, ev.Data)
	})
	emitter.Subscribe(events.EventPreCommitQuorum, func(ev events.Event) {
		log.Printf("[event] precommit quorum at height %d: %v", ev.BlockHeight, ev.Data)
	})

	// ---- mempool ----
	mempool := core.NewMempool()

	// ---- consensus bookkeeping ----
	tally := consensus.NewTally(bc.Height() + 1)

	// ---- TLS ----
	tlsCfg, err := config.LoadTLSConfig(cfg.TLS)
	if err != nil {
		log.Fatalf("tls: %v", err)
	}
	if tlsCfg != nil {
		log.Println("mTLS enabled for P2P")
	}

	// ---- network ----
	node := network.NewNode(cfg.NodeID, cfg.ListenAddress, tlsCfg)
	producer := consensus.NewProducer(bc, validators, mempool, tally, node, emitter, privKey)
	engine := consensus.NewEngine(bc, validators, tally, producer, emitter)
	producer.SetProposalHandler(engine.OnProposeBlock)

	session := network.NewSession(bc, validators, store, node, engine, engine.OnProposeBlock, func(peer *network.Peer) {
		emitter.Emit(events.Event{Type: events.EventSyncStarted, Data: map[string]any{"peer": peer.Addr}})
	})
	node.SetDispatcher(session)

	if err := node.Start(); err != nil {
		log.Fatalf("p2p start: %v", err)
	}
	defer node.Stop()
	log.Printf("P2P listening on %s", cfg.ListenAddress)

	// ---- connect to bootstrap peers ----
	for _, addr := range cfg.BootstrapNodes {
		if err := node.Dial(addr); err != nil {
			log.Printf("bootstrap peer %s: %v", addr, err)
			continue
		}
		log.Printf("Connected to bootstrap peer %s", addr)
	}

	// ---- announce self as a validator ----
	announceValidator(node, selfAddress, cfg.SelfStake, privKey.Public().Hex())

	// ---- RPC ----
	rpcHandler := rpc.NewHandler(bc, mempool, validators)
	rpcServer := rpc.NewServer(cfg.RPCAddress, rpcHandler, "")
	if err := rpcServer.Start(); err != nil {
		log.Fatalf("rpc start: %v", err)
	}
	defer rpcServer.Stop()
	log.Printf("RPC listening on %s", cfg.RPCAddress)

	// ---- consensus loop ----
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		producer.Run(done)
	}()
	log.Printf("Consensus running (validator: %s)", selfAddress)

	// ---- graceful shutdown ----
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Shutting down...")

	// 1. Stop consensus first (no new blocks written)
	close(done)
	wg.Wait()

	// 2. Deferred calls run in LIFO: rpcServer.Stop → node.Stop → db.Close
	log.Println("Shutdown complete.")
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("Config file not found at %s, using defaults.", path)
			return config.DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

func persistValidators(store core.Store, validators *core.ValidatorSet) error {
	data, err := validators.Marshal()
	if err != nil {
		return err
	}
	return store.PutValidatorState(data)
}

func announceValidator(node *network.Node, address string, stake uint64, pubKeyHex string) {
	reg := network.RegisterValidatorPayload{Address: address, Stake: stake, PubKey: pubKeyHex}
	data, err := json.Marshal(reg)
	if err != nil {
		log.Printf("marshal validator announcement: %v", err)
		return
	}
	node.Broadcast(network.Message{Type: network.MsgRegisterValidator, Payload: data})
}
