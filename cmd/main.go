package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/eihwaz/featureflag"
	eihwazhttp "github.com/aukilabs/eihwaz/http"
	"github.com/aukilabs/eihwaz/index"
	"github.com/aukilabs/eihwaz/soak"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// The Eihwaz version number. Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "eihwaz_info",
		Help:        "Eihwaz information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

// This will effectively disable obfuscation of the config struct. Without it, the keys would get obfuscated causing the cli package to generate garbled command-line options.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	AdminAddr    string        `cli:""        env:"EIHWAZ_ADMIN_ADDR"    help:"Admin listening address."`
	LogLevel     string        `cli:""        env:"EIHWAZ_LOG_LEVEL"     help:"Log level (debug|info|warning|error)."`
	LogIndent    bool          `cli:""        env:"EIHWAZ_LOG_INDENT"    help:"Indent logs."`
	Seed         int64         `cli:""        env:"EIHWAZ_SEED"          help:"The soak RNG seed."`
	Partitions   int           `cli:""        env:"EIHWAZ_PARTITIONS"    help:"The number of partitions regions are spread over."`
	Regions      int           `cli:""        env:"EIHWAZ_REGIONS"       help:"The number of live regions the soak maintains."`
	Rounds       int           `cli:""        env:"EIHWAZ_ROUNDS"        help:"The number of churn rounds."`
	MaxEntries   int           `cli:",hidden" env:"EIHWAZ_MAX_ENTRIES"   help:"The per-node capacity of the partition trees."`
	LingerAfter  time.Duration `cli:",hidden" env:"EIHWAZ_LINGER_AFTER"  help:"How long the admin endpoint stays up after the soak completes."`
	FeatureFlags []string      `cli:",hidden" env:"EIHWAZ_FEATURE_FLAGS" help:"Comma separated feature flags"`
	Version      bool          `cli:""        env:"-"                    help:"Show version."`
	Help         bool          `cli:""        env:"-"                    help:"Show help."`
}

func main() {
	conf := config{
		AdminAddr:   ":18190",
		LogLevel:    logs.InfoLevel.String(),
		Seed:        time.Now().UnixNano(),
		Partitions:  4,
		Regions:     5000,
		Rounds:      20,
		LingerAfter: time.Second * 5,
	}

	// set the information gauge to 1, useful for SUM query
	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Runs an Eihwaz region index soak.").
		Options(&conf)
	cli.Load()

	if conf.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))
	logs.Encoder = json.Marshal
	if conf.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}

	errors.Encoder = json.Marshal

	idx := index.New(
		index.WithMaxEntries(conf.MaxEntries),
		index.WithFeatureFlags(featureflag.New(conf.FeatureFlags)),
	)

	var admin http.ServeMux
	admin.Handle("/metrics", promhttp.Handler())
	admin.HandleFunc("/health", eihwazhttp.HandleHealthCheck)
	admin.HandleFunc("/version", eihwazhttp.HandleVersion(version))
	admin.HandleFunc("/stats", eihwazhttp.HandleStats(idx))
	admin.HandleFunc("/debug/pprof/", pprof.Index)
	admin.HandleFunc("/debug/pprof/profile", pprof.Profile)
	admin.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	admin.Handle("/debug/pprof/heap", pprof.Handler("heap"))

	logs.WithTag("version", version).
		WithTag("log_level", conf.LogLevel).
		WithTag("seed", conf.Seed).
		WithTag("partitions", conf.Partitions).
		WithTag("regions", conf.Regions).
		Info("starting eihwaz soak")

	go func() {
		defer cancel()

		res, err := soak.Run(ctx, idx, soak.Options{
			Seed:       conf.Seed,
			Partitions: conf.Partitions,
			Regions:    conf.Regions,
			Rounds:     conf.Rounds,
		})
		if err != nil {
			logs.WithTag("seed", conf.Seed).
				Error(errors.New("soak failed").Wrap(err))
			return
		}

		logs.WithTag("added", res.Added).
			WithTag("removed", res.Removed).
			WithTag("relocated", res.Relocated).
			WithTag("point_queries", res.PointQueries).
			WithTag("range_queries", res.RangeQueries).
			WithTag("duration", res.Duration.String()).
			Info("soak passed")

		// Leave the admin endpoint up long enough for a final scrape.
		select {
		case <-time.After(conf.LingerAfter):
		case <-ctx.Done():
		}
	}()

	eihwazhttp.ListenAndServe(ctx,
		&http.Server{Addr: conf.AdminAddr, Handler: &admin},
	)
}
