package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	_ "github.com/silbinarywolf/preferdiscretegpu"

	"github.com/flowscope/flowscope/pkg/enrich"
	"github.com/flowscope/flowscope/pkg/flowfeed"
	"github.com/flowscope/flowscope/pkg/flowgraph"
	"github.com/flowscope/flowscope/pkg/flowview"
	"github.com/flowscope/flowscope/pkg/pinning"
)

var (
	configFlag   = flag.String("config", "", "Path to YAML config file (missing file uses defaults)")
	feedFlag     = flag.String("feed", "", "Websocket URL of a flow event feed (empty runs the synthetic generator)")
	synthRate    = flag.Int("synth-rate", 40, "Synthetic events per second when no feed is given")
	synthHosts   = flag.Int("synth-hosts", 120, "Synthetic host pool size")
	pinsFlag     = flag.String("pins", "", "Comma-separated pin rules (ip, cidr, ip-ip, port:N)")
	geoipFlag    = flag.String("geoip", "", "Path or http(s) URL of a GeoIP country database for node labels")
	cacheDirFlag = flag.String("cache-dir", "data/cache", "Directory for the enrichment cache")
	metricsFlag  = flag.String("metrics-listen", "", "Address for the Prometheus /metrics endpoint (empty disables)")
	captureFlag  = flag.String("capture-dir", "", "Directory for periodic frame captures (empty disables)")
	headlessFlag = flag.Bool("headless", false, "Run without a local window (Xvfb rendering active)")
	windowWidth  = flag.Int("window-width", 1280, "Initial window width (non-headless only)")
	windowHeight = flag.Int("window-height", 720, "Initial window height (non-headless only)")
	tpsFlag      = flag.Int("tps", 30, "Ticks per second (simulation steps)")
)

func main() {
	flag.Parse()
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	cfg, err := flowgraph.LoadConfig(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	counting := flowgraph.NewCountingObserver()
	obs := flowgraph.Observer(counting)
	if *metricsFlag != "" {
		reg := prometheus.NewRegistry()
		obs = flowgraph.MultiObserver{counting, flowgraph.NewPromObserver(reg)}
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			log.Printf("Serving metrics on %s", *metricsFlag)
			if err := http.ListenAndServe(*metricsFlag, mux); err != nil {
				log.Printf("Metrics listener failed: %v", err)
			}
		}()
	}

	engine := flowgraph.NewEngine(cfg, obs)

	matcher, err := pinning.Parse(splitRules(*pinsFlag))
	if err != nil {
		log.Fatalf("Bad pin rules: %v", err)
	}
	if !matcher.Empty() {
		engine.SetPinFunc(matcher.IsPinned)
	}

	submit := func(ev flowgraph.FlowEvent) {
		matcher.ObservePort(ev.SourceAddress, ev.SourcePort)
		matcher.ObservePort(ev.DestAddress, ev.DestPort)
		engine.Submit(ev)
	}

	stop := make(chan struct{})
	if *feedFlag != "" {
		listener := flowfeed.NewListener(*feedFlag, submit)
		go listener.Listen()
		defer listener.Stop()
	} else {
		log.Printf("No feed given, generating %d synthetic events/s", *synthRate)
		gen := flowfeed.NewGenerator(*synthRate, *synthHosts, submit)
		go gen.Run(stop)
	}
	defer close(stop)

	if *geoipFlag != "" {
		dbPath, err := enrich.LocateDatabase(*geoipFlag, *cacheDirFlag)
		if err != nil {
			log.Fatalf("Failed to fetch GeoIP database: %v", err)
		}
		resolver, err := enrich.NewResolver(dbPath, *cacheDirFlag+"/enrich")
		if err != nil {
			log.Fatalf("Failed to open GeoIP database: %v", err)
		}
		defer resolver.Close()
		go labelLoop(engine, resolver, stop)
	}

	go engine.StartIngestLoop()
	go engine.StartSweepLoop()
	defer engine.Stop()

	view := flowview.NewView(engine, counting)
	view.FrameCaptureDir = *captureFlag

	ebiten.SetTPS(*tpsFlag)
	if *headlessFlag {
		log.Println("Running in HEADLESS mode (Rendering active).")
		if err := ebiten.RunGame(view); err != nil {
			log.Fatal(err)
		}
	} else {
		ebiten.SetWindowSize(*windowWidth, *windowHeight)
		ebiten.SetWindowTitle("Flowscope")
		if err := ebiten.RunGame(view); err != nil {
			log.Fatal(err)
		}
	}
}

func splitRules(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// labelLoop periodically relabels nodes still showing their raw
// address. Labels attach after ingestion because an event's node does
// not exist until the ingest tick that admits it.
func labelLoop(engine *flowgraph.Engine, resolver *enrich.Resolver, stop <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap := engine.Snapshot()
			for _, n := range snap.Nodes {
				if n.Label != n.ID {
					continue
				}
				if label := resolver.Label(n.ID); label != n.ID {
					engine.SetLabel(n.ID, label)
				}
			}
		}
	}
}
